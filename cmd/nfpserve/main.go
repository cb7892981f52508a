// Command nfpserve converts videos on request and serves the resulting
// frames to ComputerCraft clients over HTTP.
package main

import (
	"net/http"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo"
	"github.com/labstack/echo/middleware"

	"github.com/tmpim/nfp/config"
	"github.com/tmpim/nfp/logger"
	"github.com/tmpim/nfp/stream"
)

var upgrader = websocket.Upgrader{
	HandshakeTimeout: 5 * time.Second,
}

// CLI defines the server's command-line interface.
type CLI struct {
	Config   string  `help:"YAML configuration file."`
	Listen   *string `help:"Address to listen on (default: :9999)."`
	Root     *string `help:"Directory conversions are written to (default: videos)."`
	LogLevel *string `name:"log-level" short:"l" help:"Log level (debug, info, warn, error)."`
}

func main() {
	var cli CLI
	kong.Parse(&cli,
		kong.Name("nfpserve"),
		kong.Description("Convert videos into NFP frames on request and serve them."),
	)

	cfg := config.Defaults()
	if cli.Config != "" {
		var err error
		cfg, err = config.Load(cli.Config)
		if err != nil {
			logger.NewConsole(logger.LevelError).Error("%s", err)
			os.Exit(1)
		}
	}
	if cli.Listen != nil {
		cfg.Listen = *cli.Listen
	}
	if cli.Root != nil {
		cfg.Root = *cli.Root
	}
	if cli.LogLevel != nil {
		cfg.LogLevel = *cli.LogLevel
	}

	log := logger.NewConsole(logger.ParseLevel(cfg.LogLevel))
	if err := cfg.Validate(); err != nil {
		log.Error("%s", err)
		os.Exit(1)
	}

	e := newServer(stream.NewManager(cfg, log), cfg.Root)

	log.Info("Listening on %s", cfg.Listen)
	if err := e.Start(cfg.Listen); err != nil {
		log.Error("%s", err)
		os.Exit(1)
	}
}

func newServer(mgr *stream.Manager, root string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())

	api := e.Group("/api")

	api.GET("/client", func(c echo.Context) error {
		ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			return err
		}

		mgr.HandleConn(ws)

		return nil
	})

	api.GET("/state", func(c echo.Context) error {
		state := mgr.State()
		return c.JSON(http.StatusOK, &state)
	})

	api.POST("/convert", func(c echo.Context) error {
		var req stream.Request
		if err := c.Bind(&req); err != nil {
			return err
		}

		state, err := mgr.Start(req)
		if err != nil {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}

		return c.JSON(http.StatusAccepted, &state)
	})

	api.POST("/cancel", func(c echo.Context) error {
		state, err := mgr.Cancel()
		if err != nil {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}

		return c.JSON(http.StatusOK, &state)
	})

	api.GET("/videos", func(c echo.Context) error {
		slugs, err := mgr.Videos()
		if err != nil {
			return err
		}

		return c.JSON(http.StatusOK, slugs)
	})

	api.GET("/videos/:slug", func(c echo.Context) error {
		manifest, err := mgr.Video(c.Param("slug"))
		if err != nil {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}

		return c.JSON(http.StatusOK, manifest)
	})

	e.Static("/videos", root)

	return e
}
