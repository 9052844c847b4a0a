// Copyright 2022 Intel Corporation. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"github.com/rackmem/rackmem/pkg/config"
	"github.com/rackmem/rackmem/pkg/instrumentation"
	logger "github.com/rackmem/rackmem/pkg/log"
	"github.com/rackmem/rackmem/pkg/master"
)

// pidFilePath names this master's PID file after its listen address, so a
// host running more than one master (tests, multi-listener rehearsals)
// doesn't have every instance fighting over the same path.
func pidFilePath(listenAddress string) string {
	tag := strings.NewReplacer(":", "_", "/", "_").Replace(listenAddress)
	name := fmt.Sprintf("rackmem-master.%s.pid", tag)
	if os.Geteuid() > 0 {
		return filepath.Join("/tmp", name)
	}
	return filepath.Join("/", "var", "run", name)
}

// writePIDFile creates path exclusively and writes this process's pid into
// it, failing if the file already exists.
func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "failed to create pid file directory")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrap(err, "failed to create pid file")
	}
	defer f.Close()
	if _, err := f.Write([]byte(fmt.Sprintf("%d\n", os.Getpid()))); err != nil {
		return errors.Wrap(err, "failed to write pid file")
	}
	return nil
}

func main() {
	log := logger.Default()
	logger.SetGrpcLogger("grpc-lib", &logger.Rate{Limit: logger.Every(5 * time.Minute), Burst: 1})
	logger.SetStdLogger("stdlog")
	logger.SetupDebugToggleSignal(syscall.SIGUSR1)
	defer logger.ClearDebugToggleSignal()

	cfg := config.NewMasterConfig()
	if err := cfg.Parse(os.Args[1:]); err != nil {
		log.Error("%v", err)
		cfg.Usage()
		os.Exit(1)
	}

	if err := instrumentation.Setup("rackmem-master"); err != nil {
		log.Fatal("failed to set up instrumentation: %v", err)
	}
	defer instrumentation.Finish()

	pidPath := pidFilePath(cfg.ListenAddress)
	if err := writePIDFile(pidPath); err != nil {
		log.Fatal("failed to write pid file: %v", err)
	}
	defer os.Remove(pidPath)

	svc := master.NewService(cfg)
	if err := svc.Start(); err != nil {
		log.Fatal("failed to start master: %v", err)
	}
	defer svc.Stop()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	log.Info("shutting down")
}
