// Package server 打分结果的 HTTP 展示服务
package server

import (
	"bytes"
	"context"
	nethttp "net/http"
	"time"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/config"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/engine"
)

// Name 服务名
const Name = "datagen"

// NewHTTPServer 注册 /api/summary、/api/groups/{name}、/ 与 /metrics
func NewHTTPServer(c config.ServerConfig, s *ScoreService, gatherer prometheus.Gatherer, logger log.Logger) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(recovery.WithHandler(func(ctx context.Context, req, err any) error {
				log.NewHelper(logger).Errorf("panic recovered: %v", err)
				return recovery.ErrUnknownRequest
			})),
		),
	}
	if c.Addr != "" {
		opts = append(opts, http.Address(c.Addr))
	}
	if c.Timeout != "" {
		if d, err := time.ParseDuration(c.Timeout); err == nil {
			opts = append(opts, http.Timeout(d))
		}
	}

	srv := http.NewServer(opts...)

	r := srv.Route("/api")
	r.GET("/summary", func(ctx http.Context) error {
		h := ctx.Middleware(func(context.Context, any) (any, error) {
			mode, err := ParseMode(ctx.Query().Get("mode"))
			if err != nil {
				return nil, err
			}
			return s.Summary(mode)
		})
		out, err := h(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Result(nethttp.StatusOK, out)
	})
	r.GET("/groups/{name}", func(ctx http.Context) error {
		h := ctx.Middleware(func(context.Context, any) (any, error) {
			mode, err := ParseMode(ctx.Query().Get("mode"))
			if err != nil {
				return nil, err
			}
			return s.Group(mode, ctx.Vars().Get("name"))
		})
		out, err := h(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Result(nethttp.StatusOK, out)
	})

	srv.HandleFunc("/", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.URL.Path != "/" {
			nethttp.NotFound(w, r)
			return
		}
		mode, err := ParseMode(r.URL.Query().Get("mode"))
		if err != nil {
			nethttp.Error(w, err.Error(), nethttp.StatusBadRequest)
			return
		}
		summary, err := s.Summary(mode)
		if err != nil {
			nethttp.Error(w, err.Error(), nethttp.StatusInternalServerError)
			return
		}
		var buf bytes.Buffer
		if err := engine.RenderReport(&buf, summary); err != nil {
			nethttp.Error(w, err.Error(), nethttp.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(buf.Bytes())
	})

	srv.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return srv
}

// NewApp 组装 kratos 应用
func NewApp(c config.ServerConfig, dir string, gatherer prometheus.Gatherer, logger log.Logger) *kratos.App {
	srv := NewHTTPServer(c, NewScoreService(dir, logger), gatherer, logger)
	return kratos.New(
		kratos.Name(Name),
		kratos.Logger(logger),
		kratos.Server(srv),
	)
}
