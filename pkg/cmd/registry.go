// Package cmd provides common initialization for the command-line binaries.
package cmd

import (
	"log/slog"

	"github.com/driphq/drip/pkg/actions/conditioncheck"
	"github.com/driphq/drip/pkg/actions/followup"
	"github.com/driphq/drip/pkg/actions/logevent"
	"github.com/driphq/drip/pkg/actions/notification"
	"github.com/driphq/drip/pkg/actions/profileupdate"
	"github.com/driphq/drip/pkg/actions/segment"
	"github.com/driphq/drip/pkg/actions/sendemail"
	"github.com/driphq/drip/pkg/actions/wait"
	"github.com/driphq/drip/pkg/actions/webhook"
	"github.com/driphq/drip/pkg/engine"
	"github.com/driphq/drip/pkg/profile"
	"github.com/driphq/drip/pkg/protocol"
	"github.com/driphq/drip/pkg/registry"
)

// Collaborators are the outbound delivery dependencies the action executors
// need. Development binaries pass the log-based implementations from
// pkg/delivery.
type Collaborators struct {
	Mailer      protocol.Mailer
	Notifier    protocol.Notifier
	EventLogger protocol.EventLogger
}

// NewRegistry builds the action executor registry with every supported
// action registered. Call engine.BindRegistry with the result afterwards.
func NewRegistry(eng *engine.Engine, profiles profile.Store, collaborators Collaborators, logger *slog.Logger) *registry.Registry {
	reg := registry.NewRegistry(logger)

	reg.RegisterExecutor(sendemail.NewFactory(collaborators.Mailer))
	reg.RegisterExecutor(wait.NewFactory())
	reg.RegisterExecutor(conditioncheck.NewFactory(eng.Evaluator()))
	reg.RegisterExecutor(profileupdate.NewFactory(profiles))
	reg.RegisterExecutor(segment.NewAddFactory(profiles))
	reg.RegisterExecutor(segment.NewRemoveFactory(profiles))
	reg.RegisterExecutor(webhook.NewFactory())
	reg.RegisterExecutor(followup.NewFactory(eng))
	reg.RegisterExecutor(notification.NewFactory(collaborators.Notifier))
	reg.RegisterExecutor(logevent.NewFactory(collaborators.EventLogger))

	return reg
}
