// Command nettable-demo is a small interactive client exercising the
// client role of the protocol against a running nettabled, grounded on
// the teacher's own demo program.
package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hollowcore/nettable/nettransport"
	"github.com/hollowcore/nettable/notifier"
	"github.com/hollowcore/nettable/rpcserver"
	"github.com/hollowcore/nettable/storage"
	"github.com/hollowcore/nettable/value"
)

func main() {
	var addr string
	root := &cobra.Command{
		Use:   "nettable-demo",
		Short: "interactive NetworkTables client",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(addr)
		},
	}
	root.Flags().StringVar(&addr, "addr", "ws://localhost:1735/nt", "server websocket address")
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runDemo(addr string) error {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	n := notifier.New(0)
	defer n.Close()
	engine := storage.New(n, rpcserver.New(), log)

	n.AddListener("", 0, func(e storage.EntryNotification) {
		fmt.Printf("%s = %v\n", e.Name, e.Value)
	})

	client, err := nettransport.Dial(addr, engine, "nettable-demo", log)
	if err != nil {
		return err
	}
	engine.SetDispatcher(client, false)
	defer client.Close()

	fmt.Println("connected. commands: get <key> | set <key> <double> | delete <key> | quit")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "quit", "exit":
			return nil
		case "get":
			if len(fields) < 2 {
				continue
			}
			v := engine.GetEntryValue(fields[1])
			fmt.Printf("%s = %v\n", fields[1], v)
		case "set":
			if len(fields) < 3 {
				continue
			}
			f, err := strconv.ParseFloat(fields[2], 64)
			if err != nil {
				fmt.Println(err)
				continue
			}
			engine.SetEntryValue(fields[1], value.NewDouble(f, 0))
		case "delete":
			if len(fields) < 2 {
				continue
			}
			engine.DeleteEntry(fields[1])
		default:
			fmt.Println("unknown command")
		}
	}
	time.Sleep(50 * time.Millisecond)
	return nil
}
