/**
 * Licensed to the Apache Software Foundation (ASF) under one
 * or more contributor license agreements.  See the NOTICE file
 * distributed with this work for additional information
 * regarding copyright ownership.  The ASF licenses this file
 * to you under the Apache License, Version 2.0 (the
 * "License"); you may not use this file except in compliance
 * with the License.  You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package cli

import (
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ancslink/ancslink/ancsact/ancsdefs"
	"github.com/ancslink/ancslink/ancsact/appcache"
	"github.com/ancslink/ancslink/ancsact/engine"
	"github.com/ancslink/ancslink/ancsact/xport"
	"github.com/ancslink/ancslink/ancslink/bll"
	"github.com/ancslink/ancslink/ancslink/config"
	"github.com/ancslink/ancslink/ancslink/feed"
	"github.com/ancslink/ancslink/ancslink/lnkutil"
	"github.com/ancslink/ancslink/ancslink/store"
)

// How often pruning runs, counted in stored records.
const pruneStride = 100

func cfgPath() (string, error) {
	if lnkutil.CfgPath != "" {
		return lnkutil.CfgPath, nil
	}
	return config.DefaultPath()
}

func loadConfig() (config.Config, string, error) {
	path, err := cfgPath()
	if err != nil {
		return config.Config{}, "", err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, "", err
	}

	// Command line flags win over the config file.
	if lnkutil.DeviceId != "" {
		cfg.Device.Id = lnkutil.DeviceId
	}
	if lnkutil.DeviceName != "" {
		cfg.Device.Name = lnkutil.DeviceName
	}
	if lnkutil.Timeout != 0 {
		cfg.FetchTimeout = time.Duration(lnkutil.Timeout *
			float64(time.Second))
	}

	return cfg, path, nil
}

func dbPath(cfg config.Config) (string, error) {
	if cfg.DbPath != "" {
		return cfg.DbPath, nil
	}

	home, err := homedir.Dir()
	if err != nil {
		return "", errors.Wrap(err, "failed to resolve home directory")
	}
	return filepath.Join(home, ".ancslink", "history.db"), nil
}

func cachePath(cfg config.Config) (string, error) {
	if cfg.CachePath != "" {
		return cfg.CachePath, nil
	}
	return appcache.DefaultPath()
}

func engineCfg(cfg config.Config) engine.Cfg {
	ecfg := engine.NewCfg()
	ecfg.ConnectTimeout = cfg.ConnectTimeout
	ecfg.FetchCfg.RspTimeout = cfg.FetchTimeout
	ecfg.BackoffBase = cfg.BackoffBase
	ecfg.BackoffCap = cfg.BackoffCap
	ecfg.ReconnectMaxTries = cfg.ReconnectMaxTries
	return ecfg
}

func runRunCmd(cmd *cobra.Command, args []string) {
	cfg, path, err := loadConfig()
	if err != nil {
		lnkUsage(nil, err)
	}

	peer := xport.Peer{Id: cfg.Device.Id, Name: cfg.Device.Name}
	if peer.Id == "" && peer.Name == "" {
		lnkUsage(cmd, errors.New(
			"no target device; use --device or --name, or set [device] in "+
				"the config file"))
	}

	sp, err := dbPath(cfg)
	if err != nil {
		lnkUsage(nil, err)
	}
	st, err := store.Open(sp)
	if err != nil {
		lnkUsage(nil, err)
	}
	defer st.Close()

	cp, err := cachePath(cfg)
	if err != nil {
		lnkUsage(nil, err)
	}
	cache := appcache.New(cp)
	if err := cache.Load(); err != nil {
		log.Warnf("%s", err.Error())
	}
	defer func() {
		if err := cache.Persist(); err != nil {
			log.Warnf("%s", err.Error())
		}
	}()

	x, err := bll.NewBllXport(bll.NewXportCfg())
	if err != nil {
		lnkUsage(nil, err)
	}

	eng := engine.NewEngine(engineCfg(cfg), x, cache)
	if err := eng.Start(); err != nil {
		lnkUsage(nil, err)
	}
	evtCh := eng.Listen()

	hub := feed.NewHub()
	defer hub.Close()

	httpSrv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: hub,
	}
	go func() {
		log.Infof("serving event feed on ws://%s", cfg.ListenAddr)
		if err := httpSrv.ListenAndServe(); err != http.ErrServerClosed {
			log.Errorf("feed server failed: %s", err.Error())
		}
	}()
	defer httpSrv.Close()

	// Remember the device for the next run.
	if err := config.Save(path, cfg); err != nil {
		log.Warnf("%s", err.Error())
	}

	if err := eng.Connect(peer); err != nil {
		eng.Shutdown()
		lnkUsage(nil, err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	inserts := 0
	for {
		select {
		case s := <-sigCh:
			log.Infof("received %s; shutting down", s.String())
			eng.Shutdown()
			for range evtCh {
			}
			return

		case ev, ok := <-evtCh:
			if !ok {
				return
			}

			hub.BroadcastEvent(ev)

			if ne, isNotif := ev.(engine.NotificationEvent); isNotif {
				handleRecord(st, ne.Record, &inserts, cfg.HistoryCap)
			}
		}
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to the configured device and bridge notifications",
		Example: "  " + lnkutil.ToolInfo.ExeName +
			" run --device aa:bb:cc:dd:ee:ff",
		Run: runRunCmd,
	}
}

func handleRecord(st *store.Store, rec engine.NotificationRecord,
	inserts *int, historyCap int) {

	switch rec.EventId {
	case ancsdefs.EVENT_ID_NOTIFICATION_REMOVED:
		if _, err := st.MarkRemoved(rec.Uid, time.Now()); err != nil {
			log.Errorf("%s", err.Error())
		}
	default:
		if err := st.Insert(rec); err != nil {
			log.Errorf("%s", err.Error())
			return
		}

		*inserts++
		if *inserts%pruneStride == 0 {
			if n, err := st.Prune(historyCap); err != nil {
				log.Errorf("%s", err.Error())
			} else if n > 0 {
				log.Debugf("pruned %d notification rows", n)
			}
		}
	}
}
