// Command duplexfetch performs a single request over the stdin and stdout of a
// spawned command, in the manner of ssh's ProxyCommand:
//
//	duplexfetch -H 'Accept: */*' http://example.com/ -- nc example.com 80
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/indigo-web/duplexhttp"
	"github.com/indigo-web/duplexhttp/config"
	"github.com/indigo-web/duplexhttp/http"
	"github.com/indigo-web/duplexhttp/http/method"
	"github.com/indigo-web/duplexhttp/transport"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type headerFlags []string

func (h *headerFlags) String() string {
	return strings.Join(*h, ", ")
}

func (h *headerFlags) Set(value string) error {
	if !strings.Contains(value, ":") {
		return errors.Errorf("header %q must be in form of Key: value", value)
	}

	*h = append(*h, value)
	return nil
}

var (
	configFilename string
	requestMethod  string
	requestBody    string
	verbose        bool
	requestHeaders headerFlags
)

func main() {
	flag.StringVar(&configFilename, "c", "", "YAML config file")
	flag.StringVar(&requestMethod, "X", "GET", "request method")
	flag.StringVar(&requestBody, "d", "", "request body")
	flag.BoolVar(&verbose, "v", false, "debug logging")
	flag.Var(&requestHeaders, "H", "request header, may be repeated")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] URL -- command [args...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	logger, err := newLogger(verbose)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err = run(ctx, logger, flag.Args()); err != nil {
		logger.Error("request failed", zap.Error(err))
		os.Exit(1)
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}

	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}

	return cfg.Build()
}

func run(ctx context.Context, logger *zap.Logger, args []string) error {
	if len(args) < 2 {
		flag.Usage()
		return errors.New("both URL and command are required")
	}

	url, command := args[0], args[1:]
	if command[0] == "--" {
		command = command[1:]
	}

	if len(command) == 0 {
		return errors.New("no command given")
	}

	cfg, err := loadConfig(configFilename)
	if err != nil {
		return err
	}

	request, err := newRequest(url)
	if err != nil {
		return err
	}

	proc, err := startProcess(command)
	if err != nil {
		return err
	}
	defer func() { _ = proc.Close() }()

	client := duplexhttp.New().Tune(cfg).WithLogger(logger)
	duplex := transport.NewStream(proc, make([]byte, cfg.NET.ReadBufferSize))
	response, err := client.Do(ctx, request, duplex)
	if err != nil {
		return err
	}

	fmt.Printf("%s %d %s\n", response.Protocol, response.Code, response.Status)
	for key, value := range response.Headers.Iter() {
		fmt.Printf("%s: %s\n", key, value)
	}
	fmt.Println()

	if response.Body == nil {
		return nil
	}

	defer func() { _ = response.Body.Close() }()
	_, err = io.Copy(os.Stdout, response.Body)

	return errors.Wrap(err, "read response body")
}

func loadConfig(filename string) (*config.Config, error) {
	if len(filename) == 0 {
		return config.Default(), nil
	}

	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, "open config")
	}
	defer f.Close()

	return config.Load(f)
}

func newRequest(url string) (*http.Request, error) {
	m := method.Method(strings.ToUpper(requestMethod))
	if !m.Valid() {
		return nil, errors.Errorf("invalid method %q", requestMethod)
	}

	request, err := http.NewRequest(m, url)
	if err != nil {
		return nil, err
	}

	for _, header := range requestHeaders {
		key, value, _ := strings.Cut(header, ":")
		request.WithHeader(strings.TrimSpace(key), strings.TrimSpace(value))
	}

	if len(requestBody) > 0 {
		request.WithBodyString(requestBody)
	}

	return request, nil
}
