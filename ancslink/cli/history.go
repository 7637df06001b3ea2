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
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"github.com/ancslink/ancslink/ancslink/lnkutil"
	"github.com/ancslink/ancslink/ancslink/store"
)

func runHistoryCmd(cmd *cobra.Command, args []string) {
	limit := 20
	if len(args) > 0 {
		var err error
		limit, err = cast.ToIntE(args[0])
		if err != nil {
			lnkUsage(cmd, errors.Wrapf(err, "invalid count \"%s\"", args[0]))
		}
	}

	cfg, _, err := loadConfig()
	if err != nil {
		lnkUsage(nil, err)
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

	rows, err := st.Recent(limit)
	if err != nil {
		lnkUsage(nil, err)
	}

	for _, row := range rows {
		rec := row.Record

		state := " "
		if row.Removed {
			state = "x"
		}

		title := rec.Title
		if title == "" {
			title = "(no title)"
		}

		app := rec.AppName
		if app == "" {
			app = rec.AppId
		}

		fmt.Printf("%s %s  [%s] %-20s %s\n", state,
			rec.Received.Format("2006-01-02 15:04:05"),
			rec.Category, app, title)
	}
}

func historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "history [count]",
		Short:   "List recently stored notifications, newest first",
		Example: "  " + lnkutil.ToolInfo.ExeName + " history 50",
		Run:     runHistoryCmd,
	}
}
