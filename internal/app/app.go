package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"offermarket/internal/config"
	"offermarket/internal/controller"
	"offermarket/internal/notify"
	"offermarket/internal/repository"
	"offermarket/internal/router"
	"offermarket/internal/service"
	"offermarket/internal/sweeper"
)

type App struct {
	repo       *repository.Repository
	service    *service.Service
	controller *controller.Controller
	dispatcher *notify.Dispatcher
	sweeper    *sweeper.Sweeper
	publisher  *notify.KafkaPublisher
	stopSig    chan os.Signal
	cfg        *config.Config

	Done chan struct{}
}

type option func(*App)

func WithConfig(cfg *config.Config) option {
	return func(app *App) {
		app.cfg = cfg
	}
}

func NewApp(opts ...option) (*App, error) {
	var err error

	app := &App{
		stopSig: make(chan os.Signal, 2),
		Done:    make(chan struct{}),
	}

	for _, opt := range opts {
		opt(app)
	}

	if app.cfg == nil {
		cfg, err := config.NewConfig()
		if err != nil {
			return nil, err
		}
		app.cfg = cfg
	}

	app.repo, err = repository.NewRepository(nil, &app.cfg.PostgresConfig)
	if err != nil {
		return nil, err
	}

	app.service = service.NewService(app.repo)
	app.controller = controller.NewController(app.service)

	if len(app.cfg.KafkaConfig.Brokers) > 0 {
		app.publisher = notify.NewKafkaPublisher(app.cfg.KafkaConfig.Brokers, app.cfg.KafkaConfig.Topic)
	}
	var publisher notify.Publisher
	if app.publisher != nil {
		publisher = app.publisher
	}
	app.dispatcher = notify.NewDispatcher(app.repo, publisher, app.cfg.KafkaConfig.FlushInterval)
	app.sweeper = sweeper.NewSweeper(app.repo, app.service, app.cfg.SweepInterval)

	return app, nil
}

func (app *App) Run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		signal.Notify(app.stopSig, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
		sig := <-app.stopSig
		log.Printf("Received signal: %s\n", sig)
		cancel()
	}()

	go app.dispatcher.Run(ctx)
	go app.sweeper.Run(ctx)

	server := http.Server{
		Addr:         app.cfg.ServerAddress,
		Handler:      router.NewRouter(app.controller),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Println("Http server error:", err)
		}
	}()

	log.Printf("Server started at %s, listening for connections...\n", app.cfg.ServerAddress)
	<-ctx.Done()

	timeout, tcancel := context.WithTimeout(context.Background(), time.Second*10)
	defer tcancel()
	log.Println("Shutting down http server...")
	server.Shutdown(timeout)

	if app.publisher != nil {
		log.Println("Closing event publisher...")
		err := app.publisher.Close()
		if err != nil {
			log.Println("Event publisher closing error:", err)
		}
	}

	log.Println("Closing repository...")
	err := app.repo.Close()
	if err != nil {
		log.Println("Repository closing error:", err)
	}

	close(app.Done)
	log.Println("Exiting app.")
}
