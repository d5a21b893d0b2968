/*
Vitrine serves a directory of STL meshes over HTTP and keeps a cache of
rendered preview images for them. The preview pipeline runs in a single
background scheduler; everything else is a thin layer over the storage
volume.
*/
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"

	"github.com/printbed/vitrine/server/config"
	"github.com/printbed/vitrine/server/core"
	"github.com/printbed/vitrine/server/jobs"
	"github.com/printbed/vitrine/server/mesh"
	"github.com/printbed/vitrine/server/storage"
	"github.com/printbed/vitrine/server/web"
)

func main() {
	configPath := flag.String("config", "vitrine.toml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		core.LogFatal(err.Error())
	}
	core.SetLevel(cfg.LogLevel)

	volume, err := storage.NewDiskVolume(cfg.DataDir)
	if err != nil {
		core.LogFatal(err.Error())
	}

	for _, dir := range []string{mesh.MeshDir, mesh.ThumbDir} {
		if err := volume.EnsureDir(dir); err != nil {
			core.LogFatal(err.Error())
		}
	}

	scheduler := jobs.NewScheduler(volume, cfg.QueueCapacity, nil)

	// Queue previews for meshes that do not have one yet.
	if names, err := volume.List(mesh.MeshDir); err == nil {
		for _, name := range names {
			if !strings.EqualFold(path.Ext(name), mesh.Extension) {
				continue
			}
			logical := path.Join(mesh.MeshDir, name)
			if !volume.Exists(mesh.ThumbnailPath(logical)) {
				scheduler.Enqueue(logical)
			}
		}
	}

	var watcher *storage.Watcher
	if cfg.Watch {
		watcher, err = storage.NewWatcher(volume, mesh.MeshDir, scheduler.Enqueue)
		if err != nil {
			core.LogWarn("mesh watcher disabled: %s", err.Error())
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	go scheduler.Run(ctx)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: web.NewServer(volume, scheduler),
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	// start shutdown goroutine
	go func() {
		<-sigCh
		cancel()
		if watcher != nil {
			_ = watcher.Close()
		}
		_ = srv.Shutdown(context.Background())
	}()

	core.LogInfo("listening on %s (data in %s)", cfg.ListenAddr, volume.Root())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		core.LogFatal(err.Error())
	}
}
