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
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"github.com/ancslink/ancslink/ancsact/ancsp"
	"github.com/ancslink/ancslink/ancslink/lnkutil"
)

func parseHexArg(s string) ([]byte, error) {
	clean := strings.NewReplacer(" ", "", ":", "", "0x", "").Replace(s)
	b, err := hex.DecodeString(clean)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid hex string \"%s\"", s)
	}
	return b, nil
}

func runDecodeNotifSrcCmd(cmd *cobra.Command, args []string) {
	if len(args) < 1 {
		lnkUsage(cmd, nil)
	}

	b, err := parseHexArg(strings.Join(args, ""))
	if err != nil {
		lnkUsage(cmd, err)
	}

	ev, err := ancsp.DecodeNotifSrc(b)
	if err != nil {
		lnkUsage(nil, err)
	}

	fmt.Printf("event:          %s\n", ev.EventId.String())
	fmt.Printf("category:       %s (%d pending)\n",
		ev.CategoryId.String(), ev.CategoryCount)
	fmt.Printf("uid:            %d\n", ev.Uid)
	fmt.Printf("silent:         %v\n", ev.EventFlags.Silent())
	fmt.Printf("important:      %v\n", ev.EventFlags.Important())
	fmt.Printf("pre-existing:   %v\n", ev.EventFlags.PreExisting())
	fmt.Printf("pos action:     %v\n", ev.EventFlags.PositiveAction())
	fmt.Printf("neg action:     %v\n", ev.EventFlags.NegativeAction())
}

func runDecodeDataSrcCmd(cmd *cobra.Command, args []string) {
	if len(args) < 3 {
		lnkUsage(cmd, nil)
	}

	uid, err := cast.ToUint32E(args[0])
	if err != nil {
		lnkUsage(cmd, errors.Wrapf(err, "invalid uid \"%s\"", args[0]))
	}

	count, err := cast.ToIntE(args[1])
	if err != nil {
		lnkUsage(cmd, errors.Wrapf(err, "invalid attribute count \"%s\"",
			args[1]))
	}

	r := ancsp.NewReassembler(uid, count)

	st := ancsp.REASM_INCOMPLETE
	for _, arg := range args[2:] {
		b, err := parseHexArg(arg)
		if err != nil {
			lnkUsage(cmd, err)
		}

		st, err = r.Feed(b)
		if err != nil {
			lnkUsage(nil, err)
		}
	}

	if st != ancsp.REASM_COMPLETE {
		fmt.Printf("incomplete: %d attributes decoded, want %d\n",
			r.Attrs().Len(), count)
		return
	}

	m := r.Attrs().Map()
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fmt.Printf("%-16s %q\n", name+":", m[name])
	}
}

func decodeCmd() *cobra.Command {
	decodeCmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode captured packets offline",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.HelpFunc()(cmd, args)
		},
	}

	notifSrcCmd := &cobra.Command{
		Use:   "notifsrc <hex>",
		Short: "Decode a Notification Source event",
		Example: "  " + lnkutil.ToolInfo.ExeName +
			" decode notifsrc 000006012a000000",
		Run: runDecodeNotifSrcCmd,
	}
	decodeCmd.AddCommand(notifSrcCmd)

	dataSrcCmd := &cobra.Command{
		Use:   "datasrc <uid> <attr-count> <hex>...",
		Short: "Reassemble and decode Data Source fragments",
		Example: "  " + lnkutil.ToolInfo.ExeName +
			" decode datasrc 42 1 002a000000010500 48656c6c6f",
		Run: runDecodeDataSrcCmd,
	}
	decodeCmd.AddCommand(dataSrcCmd)

	return decodeCmd
}
