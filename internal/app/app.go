package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/shopbot/core/bootstrap"
	corecmd "github.com/m3rciful/shopbot/core/cmd"
	coretelegram "github.com/m3rciful/shopbot/core/telegram"
	"github.com/m3rciful/shopbot/core/telegram/helpers"
	"github.com/m3rciful/shopbot/core/telegram/router"
	"github.com/m3rciful/shopbot/internal/bot"
	"github.com/m3rciful/shopbot/internal/localization"
	"github.com/m3rciful/shopbot/internal/notification"
	"github.com/m3rciful/shopbot/internal/service"
	"github.com/m3rciful/shopbot/internal/storefront"
)

// App owns the wired application graph.
type App struct {
	cfg *Config

	db  *sqlx.DB
	rdb *redis.Client

	texts    *localization.Localizer
	users    *service.UserService
	flow     *storefront.Flow
	notifier *notification.Manager
	registry *coretelegram.Registry
}

var _ corecmd.TelegramApp = (*App)(nil)

// Bootstrap initializes infrastructure and wires the storefront graph.
func Bootstrap(carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
	cfg, ok := carrier.(*Config)
	if !ok {
		return nil, fmt.Errorf("app: unexpected config type %T", carrier)
	}

	infra, err := bootstrap.Run(bootstrap.Options{
		Config:   &cfg.Core,
		Database: cfg.Database,
	})
	if err != nil {
		return nil, err
	}

	texts, err := loadTexts(cfg.Shop.TextsFile)
	if err != nil {
		_ = infra.DB.Close()
		return nil, err
	}

	catalog := service.NewCatalogService(infra.DB)
	users := service.NewUserService(infra.DB)
	purchases := service.NewPurchaseStore(infra.DB)
	notifier := notification.NewManager(cfg.Shop.NotifyChatID, texts)

	flow := storefront.NewFlow(storefront.Deps{
		Catalog:              catalog,
		Wallet:               users,
		Transactor:           purchases,
		Notifier:             notifier,
		Texts:                texts,
		CategoriesPerPage:    cfg.Shop.CategoriesPerPage,
		SubcategoriesPerPage: cfg.Shop.SubcategoriesPerPage,
	})

	handlers := bot.NewHandlers(flow, users, texts)

	return &App{
		cfg:      cfg,
		db:       infra.DB,
		rdb:      infra.Redis,
		texts:    texts,
		users:    users,
		flow:     flow,
		notifier: notifier,
		registry: bot.BuildRegistry(handlers),
	}, nil
}

func loadTexts(path string) (*localization.Localizer, error) {
	if path != "" {
		return localization.NewFromFile(path)
	}
	return localization.New()
}

// TelegramRunOptions assembles the bot runtime: middleware chain, routers
// and lifecycle hooks.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	onLimited := func(c tele.Context) error {
		if c.Callback() != nil {
			return c.Respond(&tele.CallbackResponse{Text: a.texts.Text("rate_limited")})
		}
		return helpers.SendHTML(c, a.texts.Text("rate_limited"))
	}

	routes := []coretelegram.Route{
		router.CallbackRoute(a.registry, router.CallbackOptions{}),
		router.TextRoute(a.registry, router.TextOptions{}),
	}

	return coretelegram.RunOptions{
		Config:      &a.cfg.Core,
		Registry:    a.registry,
		Middlewares: coretelegram.DefaultMiddlewares(&a.cfg.Core, a.rdb, onLimited),
		Routes:      routes,
		OnStart: func(_ context.Context, rt coretelegram.Runtime) error {
			a.notifier.Bind(rt.Bot, rt.Dispatcher)
			return nil
		},
		OnStop: func(_ context.Context, _ coretelegram.Runtime) error {
			var firstErr error
			if a.rdb != nil {
				if err := a.rdb.Close(); err != nil {
					firstErr = err
				}
			}
			if err := a.db.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
			return firstErr
		},
	}, nil
}
