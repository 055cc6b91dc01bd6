package main

import (
	"context"

	"studiobook/internal/bookings/handler"
	"studiobook/internal/bookings/service"
	"studiobook/internal/bookings/setup"
	"studiobook/internal/bookings/validator"
	"studiobook/pkg/app"
	"studiobook/pkg/config"
)

const ServiceName = "bookings"

func main() {
	cfg := config.Load(ServiceName)

	cfg.Log.Info("Starting Bookings service")
	stack := setup.Build(cfg)
	reservationService := initServices(cfg, stack)

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(
		handler.NewHealthHandler(cfg.Log, stack.Checks(cfg)...),
		handler.NewReservationHandler(reservationService, stack.Engine, cfg.Log),
		handler.NewPaymentHandler(stack.Engine, cfg.GatewayCallbackToken, cfg.Log),
	)
	serverApp.OnShutdown(func(context.Context) {
		stack.Close(cfg)
	})
	serverApp.Run()
}

func initServices(cfg *config.Config, stack *setup.Stack) service.ReservationService {
	reservationService := service.NewReservationService(service.Dependencies{
		Reservations: stack.Reservations,
		Installments: stack.Installments,
		Catalog:      stack.Catalog,
		Locker:       stack.Locker,
		Events:       stack.Events,
		Validator:    validator.NewReservationValidator(cfg.Log),
	}, cfg)

	cfg.Log.Info("Reservation service initialized", "database", cfg.MongoDatabaseName)
	return reservationService
}
