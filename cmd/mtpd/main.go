// Command mtpd runs an MTP/PTP responder against a configured Linux USB
// gadget, exposing one or more directories as MTP storages. Grounded on
// original_source/src/main.cpp's bring-up sequence (usb::initialize,
// register storages, enter the state-poll/process loop, usb::finalize on
// exit) and the teacher's own main.go for its flag-parsing style.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/atomic"

	"github.com/pconrad/go-mtpd/engine"
	"github.com/pconrad/go-mtpd/log"
	"github.com/pconrad/go-mtpd/storage"
	"github.com/pconrad/go-mtpd/usb"
)

func main() {
	var storages storageSpecs
	flag.Var(&storages, "storage", "name=path[:ro] backing directory to expose as an MTP storage; repeatable")

	manufacturer := flag.String("manufacturer", "go-mtpd", "GetDeviceInfo Manufacturer string")
	model := flag.String("model", "mtpd", "GetDeviceInfo Model string")
	deviceVersion := flag.String("device-version", "1.0", "GetDeviceInfo DeviceVersion string")
	serialNumber := flag.String("serial", "0", "GetDeviceInfo SerialNumber string")

	gadgetDir := flag.String("gadget-dir", "", "FunctionFS gadget mount directory containing the bulk endpoint files")
	epOut := flag.String("ep-out", "ep2", "bulk OUT endpoint file name under -gadget-dir")
	epIn := flag.String("ep-in", "ep3", "bulk IN endpoint file name under -gadget-dir")
	udcState := flag.String("udc-state", "", "optional sysfs UDC state file polled for \"configured\" before serving")
	waitTimeout := flag.Duration("wait-ready-timeout", 100*time.Millisecond, "how long each WaitReady poll waits for the link")

	monitorAddr := flag.String("monitor-addr", "", "optional host:port to serve a read-only websocket session/transaction monitor on")

	debugUSB := flag.Bool("debug-usb", false, "enable debug logging for the usb subsystem")
	debugEngine := flag.Bool("debug-engine", false, "enable debug logging for the engine subsystem")
	debugStorage := flag.Bool("debug-storage", false, "enable debug logging for the storage subsystem")
	debugMonitor := flag.Bool("debug-monitor", false, "enable debug logging for the monitor subsystem")

	flag.Parse()

	children := log.PrepareChildren(log.Root, *debugUSB, *debugEngine, *debugStorage, *debugMonitor)

	manager, err := buildStorageManager(storages, children.Storage)
	if err != nil {
		log.Root.Fatalf("storage configuration: %v", err)
	}
	if len(manager.StorageIDs()) == 0 {
		log.Root.Fatal("no -storage flags given; need at least one name=path")
	}

	var monitor *engine.Monitor
	if *monitorAddr != "" {
		monitor = engine.NewMonitor(children.Monitor)
		mux := http.NewServeMux()
		mux.HandleFunc("/monitor", monitor.HandleWebSocket)
		server := &http.Server{Addr: *monitorAddr, Handler: log.HTTPLogHandler(mux)}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				children.Monitor.Errorf("monitor server: %v", err)
			}
		}()
		children.Monitor.Infof("monitor listening on %s", *monitorAddr)
	}

	identity := engine.Identity{
		Manufacturer:  *manufacturer,
		Model:         *model,
		DeviceVersion: *deviceVersion,
		SerialNumber:  *serialNumber,
	}
	e := engine.New(identity, manager, children, monitor)

	transport, err := usb.OpenGadget(*gadgetDir, *epOut, *epIn, *udcState)
	if err != nil {
		log.Root.Fatalf("open gadget: %v", err)
	}
	defer transport.Close()

	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		children.USB.Info("shutting down")
		cancel()
	}()

	// Shutdown coordination: unblock a pending Read/Write the moment ctx is
	// canceled, the Go analogue of main.cpp's exit_thread_func interrupting
	// usb::wait_xfer. A pending WaitReady returns at its own timeout.
	go func() {
		<-ctx.Done()
		transport.Cancel()
	}()

	// USB link-state poll: one auxiliary goroutine owns the link's ready
	// state, modeled on usb.cpp's state_change_func background thread
	// updating g_state for every other caller to read.
	var ready atomic.Bool
	go func() {
		for ctx.Err() == nil {
			ready.Store(transport.WaitReady(*waitTimeout))
		}
	}()

	children.USB.Infof("serving %d storage(s) on %s", len(manager.StorageIDs()), *gadgetDir)
	for ctx.Err() == nil {
		if !ready.Load() {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		if err := e.Serve(ctx, transport, transport); err != nil && ctx.Err() == nil {
			children.Engine.Warningf("session ended: %v", err)
		}
	}
}

func buildStorageManager(specs storageSpecs, logger *log.ChildLogger) (*storage.Manager, error) {
	manager := storage.NewManager()
	for i, spec := range specs {
		if _, err := os.Stat(spec.path); err != nil {
			return nil, fmt.Errorf("storage %q: %w", spec.name, err)
		}
		id := uint32(i+1)<<16 | 1
		backend := storage.NewOSBackend(spec.path)
		s := storage.New(id, spec.name, spec.name, spec.readOnly, backend)
		manager.Add(s)
		logger.Infof("storage %q (id 0x%08x) at %s, read-only=%v", spec.name, id, spec.path, spec.readOnly)
	}
	return manager, nil
}
