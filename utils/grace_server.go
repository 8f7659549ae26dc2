package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const (
	DEFAULT_READ_TIMEOUT     = 60 * time.Second
	DEFAULT_WRITE_TIMEOUT    = DEFAULT_READ_TIMEOUT
	DEFAULT_SHUTDOWN_TIMEOUT = 30 * time.Second

	// A re-exec'd child finds the inherited listener on fd 3 when this is set.
	inheritEnvKey   = "EPHEMBBS_INHERIT_LISTENER"
	inheritEnvValue = inheritEnvKey + "=1"
	inheritedFD     = 3
)

// Server is an http.Server that drains on SIGTERM/SIGINT and hands its
// listener to a fresh process on SIGUSR2.
type Server struct {
	*http.Server

	ShutdownTimeout time.Duration

	mu        sync.Mutex
	listener  net.Listener
	inherit   bool
	log       *zap.Logger
	signals   chan os.Signal
	drained   chan struct{}
	drainOnce sync.Once
}

// NewServer builds a Server. onShutdown hooks run once draining begins, which
// is where background sweepers get stopped.
func NewServer(addr string, handler http.Handler, onShutdown ...func()) *Server {
	srv := &Server{
		Server: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  DEFAULT_READ_TIMEOUT,
			WriteTimeout: DEFAULT_WRITE_TIMEOUT,
		},
		ShutdownTimeout: DEFAULT_SHUTDOWN_TIMEOUT,
		inherit:         os.Getenv(inheritEnvKey) != "",
		log:             Logger.Named("http"),
		signals:         make(chan os.Signal, 1),
		drained:         make(chan struct{}),
	}
	for _, f := range onShutdown {
		srv.RegisterOnShutdown(f)
	}
	return srv
}

// ListenAndServe serves until the server has been drained. The returned error
// is nil after a clean drain.
func (srv *Server) ListenAndServe() error {
	ln, err := srv.listen()
	if err != nil {
		return err
	}
	srv.mu.Lock()
	srv.listener = ln
	srv.mu.Unlock()
	srv.log.Info("listening", zap.String("addr", ln.Addr().String()), zap.Bool("inherited", srv.inherit))

	signal.Notify(srv.signals, syscall.SIGTERM, syscall.SIGINT, syscall.SIGUSR2)
	go srv.watchSignals()

	err = srv.Serve(ln)
	<-srv.drained
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// BoundAddr reports the bound address, or nil before ListenAndServe.
func (srv *Server) BoundAddr() net.Addr {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.listener == nil {
		return nil
	}
	return srv.listener.Addr()
}

// Drain stops accepting connections and waits for in-flight requests up to
// ShutdownTimeout. Safe to call more than once.
func (srv *Server) Drain() {
	srv.drainOnce.Do(func() {
		signal.Stop(srv.signals)
		ctx, cancel := context.WithTimeout(context.Background(), srv.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			srv.log.Error("drain failed", zap.Error(err))
		} else {
			srv.log.Info("drained")
		}
		close(srv.drained)
	})
}

func (srv *Server) listen() (net.Listener, error) {
	if srv.inherit {
		ln, err := net.FileListener(os.NewFile(inheritedFD, "listener"))
		if err != nil {
			return nil, fmt.Errorf("inherit listener: %w", err)
		}
		return ln, nil
	}
	addr := srv.Addr
	if addr == "" {
		addr = ":http"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return ln, nil
}

func (srv *Server) watchSignals() {
	for {
		select {
		case <-srv.drained:
			return
		case sig := <-srv.signals:
			switch sig {
			case syscall.SIGTERM, syscall.SIGINT:
				srv.log.Info("shutdown signal", zap.String("signal", sig.String()))
				srv.Drain()
				return
			case syscall.SIGUSR2:
				pid, err := srv.handOff()
				if err != nil {
					srv.log.Error("restart failed, still serving", zap.Error(err))
					continue
				}
				srv.log.Info("restarted", zap.Int("child_pid", pid))
				srv.Drain()
				return
			}
		}
	}
}

// handOff re-executes the binary with the listening socket on fd 3.
func (srv *Server) handOff() (int, error) {
	srv.mu.Lock()
	ln := srv.listener
	srv.mu.Unlock()
	tcpLn, ok := ln.(*net.TCPListener)
	if !ok {
		return 0, fmt.Errorf("listener %T cannot be handed off", ln)
	}
	file, err := tcpLn.File()
	if err != nil {
		return 0, fmt.Errorf("listener file: %w", err)
	}
	defer file.Close()

	env := make([]string, 0, len(os.Environ())+1)
	for _, kv := range os.Environ() {
		if kv != inheritEnvValue {
			env = append(env, kv)
		}
	}
	env = append(env, inheritEnvValue)

	pid, err := syscall.ForkExec(os.Args[0], os.Args, &syscall.ProcAttr{
		Env:   env,
		Files: []uintptr{os.Stdin.Fd(), os.Stdout.Fd(), os.Stderr.Fd(), file.Fd()},
	})
	if err != nil {
		return 0, fmt.Errorf("fork exec: %w", err)
	}
	return pid, nil
}

// GraceServer serves handler on addr until a shutdown signal drains it.
func GraceServer(addr string, handler http.Handler, onShutdown ...func()) error {
	return NewServer(addr, handler, onShutdown...).ListenAndServe()
}
