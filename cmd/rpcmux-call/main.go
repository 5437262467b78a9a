// ABOUTME: Command-line JSON-RPC client for poking a running rpcmux server
// ABOUTME: Dials a WebSocket endpoint, issues one call or notification, prints the result

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/harper/rpcmux/internal/logger"
	"github.com/harper/rpcmux/internal/mux"
	"github.com/harper/rpcmux/internal/rpcerr"
	"github.com/harper/rpcmux/internal/transport"
)

func main() {
	_ = godotenv.Load()

	url := flag.String("url", "ws://127.0.0.1:8810", "server endpoint")
	method := flag.String("method", "rpc.ping", "method to invoke")
	params := flag.String("params", "", "params as a JSON array or object")
	notify := flag.Bool("notify", false, "send as a notification (no reply expected)")
	timeout := flag.Duration("timeout", 10*time.Second, "call timeout")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	if *verbose {
		logger.SetVerbose(true)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	tr, err := transport.DialWS(ctx, *url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dial %s: %v\n", *url, err)
		os.Exit(1)
	}
	conn := mux.NewConn(mux.Client, tr, nil)
	defer conn.Close()

	var p any
	if *params != "" {
		p = json.RawMessage(*params)
	}

	if *notify {
		if err := conn.Notify(ctx, *method, p); err != nil {
			fmt.Fprintf(os.Stderr, "notify %s: %v\n", *method, err)
			os.Exit(1)
		}
		return
	}

	result, err := conn.Call(ctx, *method, p)
	if err != nil {
		var rpcErr *rpcerr.Error
		if errors.As(err, &rpcErr) {
			fmt.Fprintf(os.Stderr, "error %d: %s\n", rpcErr.Code, rpcErr.Message)
			if len(rpcErr.Data) > 0 {
				fmt.Fprintf(os.Stderr, "data: %s\n", rpcErr.Data)
			}
		} else {
			fmt.Fprintf(os.Stderr, "call %s: %v\n", *method, err)
		}
		os.Exit(1)
	}

	var pretty any
	if json.Unmarshal(result, &pretty) == nil {
		out, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Println(string(out))
		return
	}
	fmt.Println(string(result))
}
