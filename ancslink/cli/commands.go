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
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ancslink/ancslink/ancsact/ancsutil"
	"github.com/ancslink/ancslink/ancslink/lnkutil"
)

var AncslinkLogLevel log.Level

// Prints the error and the command's usage, then exits.
func lnkUsage(cmd *cobra.Command, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err.Error())
	}

	if cmd != nil {
		fmt.Fprintf(os.Stderr, "\n")
		cmd.Help()
	}
	os.Exit(1)
}

func Commands() *cobra.Command {
	logLevelStr := ""
	lnkCmd := &cobra.Command{
		Use:   lnkutil.ToolInfo.ExeName,
		Short: lnkutil.ToolInfo.ShortName + " bridges phone notifications over BLE",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			var err error
			AncslinkLogLevel, err = log.ParseLevel(logLevelStr)
			if err != nil {
				lnkUsage(nil, err)
			}

			ancsutil.SetLogLevel(AncslinkLogLevel)
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.HelpFunc()(cmd, args)
		},
	}

	lnkCmd.PersistentFlags().StringVarP(&logLevelStr, "loglevel", "l", "info",
		"log level to use")

	lnkCmd.PersistentFlags().StringVarP(&lnkutil.CfgPath, "config", "c", "",
		"config file to use instead of the default")

	lnkCmd.PersistentFlags().StringVar(&lnkutil.DeviceId, "device", "",
		"address of target BLE device; overrides config setting")

	lnkCmd.PersistentFlags().StringVar(&lnkutil.DeviceName, "name", "",
		"name of target BLE device; overrides config setting")

	lnkCmd.PersistentFlags().Float64VarP(&lnkutil.Timeout, "timeout", "t", 0,
		"attribute fetch timeout in seconds (partial seconds allowed); "+
			"overrides config setting")

	versCmd := &cobra.Command{
		Use:     "version",
		Short:   "Display the " + lnkutil.ToolInfo.ShortName + " version number",
		Example: "  " + lnkutil.ToolInfo.ExeName + " version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s %s\n",
				lnkutil.ToolInfo.LongName,
				lnkutil.ToolInfo.VersionString)
		},
	}
	lnkCmd.AddCommand(versCmd)

	lnkCmd.AddCommand(runCmd())
	lnkCmd.AddCommand(decodeCmd())
	lnkCmd.AddCommand(historyCmd())

	return lnkCmd
}
