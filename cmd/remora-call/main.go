// Copyright 2026 The Remora Authors
// SPDX-License-Identifier: Apache-2.0

// remora-call issues a single request against a running Remora host
// socket and prints the reply as JSON. It is a diagnostic tool for
// poking at a host without writing a consumer.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	"github.com/remora-foundation/remora/lib/config"
	"github.com/remora-foundation/remora/transport"
	"github.com/remora-foundation/remora/wire"
)

const defaultSocketPath = "/run/remora/host.sock"

func main() {
	os.Exit(run())
}

func run() int {
	flags := pflag.NewFlagSet("remora-call", pflag.ContinueOnError)
	configPath := flags.String("config", "", "config file (overrides REMORA_CONFIG)")
	socketPath := flags.String("socket", "", "host socket path (overrides config)")
	argsJSON := flags.String("args", "[]", "constructor or method arguments as a JSON array")
	timeout := flags.Duration("timeout", 30*time.Second, "round-trip timeout")
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: remora-call [flags] <request> ...\n")
		fmt.Fprintf(os.Stderr, "requests:\n")
		fmt.Fprintf(os.Stderr, "  new <class>              construct a transient object\n")
		fmt.Fprintf(os.Stderr, "  getSingleton <class>     fetch a class singleton\n")
		fmt.Fprintf(os.Stderr, "  call <id> <method>       invoke a method on a live object\n")
		fmt.Fprintf(os.Stderr, "  release <id>...          drop host-side handles\n")
		fmt.Fprintf(os.Stderr, "flags:\n")
		flags.PrintDefaults()
		fmt.Fprintf(os.Stderr, "environment:\n")
		fmt.Fprintf(os.Stderr, "  REMORA_CONFIG  config file path (default socket: %s)\n", defaultSocketPath)
	}
	if err := flags.Parse(os.Args[1:]); err != nil {
		return 2
	}
	if flags.NArg() == 0 {
		flags.Usage()
		return 2
	}

	var callArgs []any
	if err := json.Unmarshal([]byte(*argsJSON), &callArgs); err != nil {
		fmt.Fprintf(os.Stderr, "error: --args must be a JSON array: %v\n", err)
		return 2
	}

	socket, err := resolveSocket(*configPath, *socketPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	request, err := buildRequest(flags.Args(), callArgs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}

	client := transport.NewSocketClient(socket)
	defer client.Close()

	if request.Type == wire.TypeRelease {
		if err := client.Send(request); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		return 0
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	var result any
	if err := client.Call(ctx, request, &result); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: encoding reply: %v\n", err)
		return 1
	}
	fmt.Println(string(encoded))
	return 0
}

// resolveSocket picks the socket path: explicit flag, then config
// file, then the default.
func resolveSocket(configPath, socketPath string) (string, error) {
	if socketPath != "" {
		return socketPath, nil
	}
	if configPath != "" {
		cfg, err := config.LoadFile(configPath)
		if err != nil {
			return "", err
		}
		return cfg.Consumer.SocketPath, nil
	}
	if os.Getenv("REMORA_CONFIG") != "" {
		cfg, err := config.Load()
		if err != nil {
			return "", err
		}
		return cfg.Consumer.SocketPath, nil
	}
	return defaultSocketPath, nil
}

// buildRequest maps the positional arguments onto a wire request.
func buildRequest(positional []string, callArgs []any) (wire.Request, error) {
	switch positional[0] {
	case wire.TypeNew, wire.TypeGetSingleton, wire.TypeGetSingletonSync:
		if len(positional) != 2 {
			return wire.Request{}, fmt.Errorf("%s requires a class name", positional[0])
		}
		return wire.Request{Type: positional[0], ClassName: positional[1], Args: callArgs}, nil
	case wire.TypeCall:
		if len(positional) != 3 {
			return wire.Request{}, fmt.Errorf("call requires an object id and a method name")
		}
		id, err := strconv.ParseUint(positional[1], 10, 64)
		if err != nil {
			return wire.Request{}, fmt.Errorf("object id %q: %w", positional[1], err)
		}
		return wire.Request{Type: wire.TypeCall, ID: id, Method: positional[2], Args: callArgs}, nil
	case wire.TypeRelease:
		if len(positional) < 2 {
			return wire.Request{}, fmt.Errorf("release requires at least one object id")
		}
		ids := make([]uint64, 0, len(positional)-1)
		for _, raw := range positional[1:] {
			id, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				return wire.Request{}, fmt.Errorf("object id %q: %w", raw, err)
			}
			ids = append(ids, id)
		}
		return wire.Request{Type: wire.TypeRelease, IDs: ids}, nil
	default:
		return wire.Request{}, fmt.Errorf("unknown request type %q", positional[0])
	}
}
