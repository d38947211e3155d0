package cmd

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/driftwood-labs/a2a-core/pkg/a2a"
	"github.com/driftwood-labs/a2a-core/pkg/bus"
	"github.com/driftwood-labs/a2a-core/pkg/cache"
	"github.com/driftwood-labs/a2a-core/pkg/executor"
	"github.com/driftwood-labs/a2a-core/pkg/stores"
	"github.com/driftwood-labs/a2a-core/pkg/tasks"
	transporthttp "github.com/driftwood-labs/a2a-core/pkg/transport/http"
)

var (
	hostFlag string
	portFlag int

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve an A2A agent over HTTP",
		Long:  longServe,
		RunE:  runServe,
	}
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&hostFlag, "host", "H", "", "host address to bind to (overrides config)")
	serveCmd.Flags().IntVarP(&portFlag, "port", "p", 0, "port to serve on (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	host := viper.GetString("server.host")
	if hostFlag != "" {
		host = hostFlag
	}
	port := viper.GetInt("server.port")
	if portFlag != 0 {
		port = portFlag
	}
	addr := fmt.Sprintf("%s:%d", host, port)

	cacheBaseURL := viper.GetString("cache.baseUrl")
	adapter := cache.New(cacheBaseURL)
	if !adapter.IsValidConnection(context.Background()) {
		log.Warn("cache adapter: could not confirm a connection at startup", "baseUrl", cacheBaseURL)
	}

	b := bus.New(adapter)
	taskStore := stores.NewTaskStore(adapter)
	pushStore := stores.NewPushConfigStore(adapter)

	identity := executor.Identity{
		AgentName: viper.GetString("agent.name"),
		AgentID:   uuid.NewString(),
		AgentType: executor.AgentTypeWorker,
	}
	exec := executor.New(b, identity)

	card := cardFromConfig()
	log.Info("agent card", "card", card.String())

	svc := tasks.New(b, taskStore, pushStore, exec, card)
	server := transporthttp.New(svc, echoHandler)

	log.Info("serving A2A agent", "addr", addr, "streaming", card.Capabilities.Streaming)
	return server.Listen(addr)
}

func cardFromConfig() *a2a.AgentCard {
	return &a2a.AgentCard{
		Name:    viper.GetString("agent.name"),
		Version: viper.GetString("agent.version"),
		URL:     viper.GetString("agent.url"),
		Capabilities: a2a.AgentCapabilities{
			Streaming:         viper.GetBool("agent.streaming"),
			PushNotifications: viper.GetBool("agent.pushNotifications"),
		},
		DefaultInputModes:  []string{"text"},
		DefaultOutputModes: []string{"text"},
	}
}

// echoHandler is the builtin demo task logic for `a2a-core serve`: it
// acknowledges the incoming message and echoes its text back as the task's
// completion message, the same shape as the spec's scenario walkthroughs.
func echoHandler(ctx context.Context, message a2a.Message, task *a2a.Task, publish executor.PublishUpdate) (executor.Result, error) {
	publish(ctx, "processing message")

	text := ""
	if len(message.Parts) > 0 {
		text = message.Parts[0].Text
	}
	return executor.TextResult("echo: " + text), nil
}

var longServe = `
Serve an A2A agent over HTTP.

Examples:
  # Serve on the configured host/port
  a2a-core serve

  # Override the bind address
  a2a-core serve --host 0.0.0.0 --port 8080
`
