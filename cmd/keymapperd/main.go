package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Danondso/keymapperd/internal/config"
	"github.com/Danondso/keymapperd/internal/dispatch"
	"github.com/Danondso/keymapperd/internal/engine"
	"github.com/Danondso/keymapperd/internal/inputsource"
	"github.com/Danondso/keymapperd/internal/learn"
	"github.com/Danondso/keymapperd/internal/processor"
	"github.com/Danondso/keymapperd/internal/virtualsink"
	"github.com/Danondso/keymapperd/internal/webui"
)

const virtualSinkName = "keymapperd-virtual"

func run() int {
	cfgPath := flag.String("config", config.DefaultPath, "path to the YAML rule config")
	webuiPort := flag.Int("webui-port", 8888, "port the local HTTP rule-editing surface listens on")
	logLevel := flag.String("log-level", "info", "log verbosity: debug or info")
	devicePath := flag.String("device", "", "evdev device path to grab (overrides device_name lookup)")
	flag.Parse()

	var dbg *log.Logger
	if *logLevel == "debug" {
		dbg = log.New(os.Stderr, "[DEBUG] ", log.Ltime|log.Lmicroseconds)
	} else {
		dbg = log.New(os.Stderr, "[INFO] ", log.Ltime)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Printf("load config: %v", err)
		return 1
	}
	store := config.NewStore(*cfgPath, cfg)

	source, err := inputsource.Open(*devicePath, cfg.DeviceName, dbg)
	if err != nil {
		log.Printf("open input device: %v", err)
		return 1
	}
	defer source.Close()
	dbg.Printf("input source: %s", cfg.DeviceName)

	sink, err := virtualsink.New(virtualSinkName)
	if err != nil {
		log.Printf("create virtual sink: %v", err)
		return 1
	}
	defer sink.Close()

	eng := engine.New(cfg.Rules, cfg.HardwareMap, cfg.Settings)
	dispatcher := dispatch.New(sink, store, dbg)
	learnFilter := learn.New()

	tickPeriod := time.Duration(cfg.Settings.TickMs) * time.Millisecond
	proc := processor.New(source, eng, dispatcher, sink, store, learnFilter, tickPeriod, dbg)

	onReload := func(updated *config.Config) {
		eng.UpdateRules(updated.Rules, updated.HardwareMap)
		eng.UpdateSettings(updated.Settings)
	}
	webServer := webui.New(store, webui.NewAppCache(), learnFilter, onReload, dbg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		dbg.Printf("signal received, shutting down")
		cancel()
	}()

	procErrCh := make(chan error, 1)
	go func() { procErrCh <- proc.Run(ctx) }()

	webErrCh := make(chan error, 1)
	go func() { webErrCh <- webServer.ListenAndServe(ctx, fmt.Sprintf(":%d", *webuiPort)) }()

	var exitCode int
	select {
	case err := <-procErrCh:
		if err != nil && err != context.Canceled {
			log.Printf("event processor stopped: %v", err)
			exitCode = 1
		}
		cancel()
		<-webErrCh
	case err := <-webErrCh:
		if err != nil {
			log.Printf("webui server stopped: %v", err)
			exitCode = 1
		}
		cancel()
		<-procErrCh
	}

	return exitCode
}

func main() {
	os.Exit(run())
}
