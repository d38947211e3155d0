// Package http is the concrete (swappable) transport for the A2A request
// surface: one JSON-RPC 2.0 POST endpoint, an SSE response mode for the
// streaming methods, the .well-known/agent.json handler, and CORS (§6). It is
// grounded on the teacher's pkg/service/agent.go fiber.App wiring.
package http

import (
	"encoding/json"
	"net/http"

	"github.com/gofiber/fiber/v3"
	fiberadaptor "github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/driftwood-labs/a2a-core/pkg/a2a"
	"github.com/driftwood-labs/a2a-core/pkg/errors"
	"github.com/driftwood-labs/a2a-core/pkg/executor"
	"github.com/driftwood-labs/a2a-core/pkg/jsonrpc"
	"github.com/driftwood-labs/a2a-core/pkg/tasks"
)

// Server exposes a tasks.Service over HTTP. Safe for concurrent use: the
// underlying Service and fiber.App both are.
type Server struct {
	app     *fiber.App
	svc     *tasks.Service
	handler executor.Handler
}

// New builds a Server. handler is the agent's task logic, forwarded to every
// message/send and message/stream call.
func New(svc *tasks.Service, handler executor.Handler) *Server {
	s := &Server{
		svc:     svc,
		handler: handler,
		app: fiber.New(fiber.Config{
			AppName:           svc.Card.Name,
			ServerHeader:      "A2A-Agent-Server",
			StreamRequestBody: true,
		}),
	}

	s.app.Use(logger.New(), healthcheck.New(), corsMiddleware)

	s.app.Get("/.well-known/agent.json", s.handleAgentCard)
	s.app.Post("/", s.handleRPC)
	s.app.Options("/", func(c fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	return s
}

// Listen starts the server on addr, blocking until it stops.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
}

// corsMiddleware sets permissive CORS headers by hand: no fiber/v3 CORS
// middleware is exercised anywhere in the reference pack, and the manual
// header-setting approach mirrors how other A2A servers in the wild do it.
func corsMiddleware(c fiber.Ctx) error {
	c.Set("Access-Control-Allow-Origin", "*")
	c.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	c.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	return c.Next()
}

func (s *Server) handleAgentCard(c fiber.Ctx) error {
	return c.JSON(s.svc.Card)
}

// handleRPC is the single POST entrypoint (§6): it parses the JSON-RPC
// envelope, dispatches by method, and either writes a single JSON response or
// upgrades the connection to an SSE stream.
func (s *Server) handleRPC(c fiber.Ctx) error {
	var req jsonrpc.Request
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(jsonrpc.NewErrorResponse(nil, errors.ErrParseError))
	}

	if req.JSONRPC != "2.0" {
		return c.JSON(jsonrpc.NewErrorResponse(req.ID, errors.ErrInvalidRequest))
	}

	switch req.Method {
	case "message/send":
		return s.handleSendMessage(c, req)
	case "message/stream":
		return s.handleSendMessageStream(c, req)
	case "tasks/get":
		return s.handleGetTask(c, req)
	case "tasks/cancel":
		return s.handleCancelTask(c, req)
	case "tasks/pushNotificationConfig/set":
		return s.handleSetPushConfig(c, req)
	case "tasks/pushNotificationConfig/get":
		return s.handleGetPushConfig(c, req)
	case "tasks/resubscribe":
		return s.handleResubscribe(c, req)
	default:
		return c.JSON(jsonrpc.NewErrorResponse(req.ID, errors.ErrMethodNotFound.WithMessagef("%s: %s", errors.ErrMethodNotFound.Message, req.Method)))
	}
}

func decodeParams(req jsonrpc.Request, out any) *errors.RpcError {
	if len(req.Params) == 0 {
		return nil
	}
	if err := json.Unmarshal(req.Params, out); err != nil {
		return errors.ErrInvalidParams.WithMessagef("invalid params: %s", err.Error())
	}
	return nil
}

func (s *Server) handleSendMessage(c fiber.Ctx, req jsonrpc.Request) error {
	var params a2a.MessageSendParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return c.JSON(jsonrpc.NewErrorResponse(req.ID, rpcErr))
	}

	result, rpcErr := s.svc.SendMessage(c, params, s.handler)
	if rpcErr != nil {
		return c.JSON(jsonrpc.NewErrorResponse(req.ID, rpcErr))
	}

	if result.Message != nil {
		return c.JSON(jsonrpc.NewResponse(req.ID, result.Message))
	}
	return c.JSON(jsonrpc.NewResponse(req.ID, result.Task))
}

func (s *Server) handleGetTask(c fiber.Ctx, req jsonrpc.Request) error {
	var params a2a.TaskQueryParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return c.JSON(jsonrpc.NewErrorResponse(req.ID, rpcErr))
	}

	task, rpcErr := s.svc.GetTask(c, params)
	if rpcErr != nil {
		return c.JSON(jsonrpc.NewErrorResponse(req.ID, rpcErr))
	}
	return c.JSON(jsonrpc.NewResponse(req.ID, task))
}

func (s *Server) handleCancelTask(c fiber.Ctx, req jsonrpc.Request) error {
	var params a2a.TaskIDParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return c.JSON(jsonrpc.NewErrorResponse(req.ID, rpcErr))
	}

	task, rpcErr := s.svc.CancelTask(c, params)
	if rpcErr != nil {
		return c.JSON(jsonrpc.NewErrorResponse(req.ID, rpcErr))
	}
	return c.JSON(jsonrpc.NewResponse(req.ID, task))
}

func (s *Server) handleSetPushConfig(c fiber.Ctx, req jsonrpc.Request) error {
	var params a2a.SetTaskPushNotificationConfigParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return c.JSON(jsonrpc.NewErrorResponse(req.ID, rpcErr))
	}

	cfg, rpcErr := s.svc.SetTaskPushNotificationConfig(c, params)
	if rpcErr != nil {
		return c.JSON(jsonrpc.NewErrorResponse(req.ID, rpcErr))
	}
	return c.JSON(jsonrpc.NewResponse(req.ID, cfg))
}

func (s *Server) handleGetPushConfig(c fiber.Ctx, req jsonrpc.Request) error {
	var params a2a.TaskIDParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return c.JSON(jsonrpc.NewErrorResponse(req.ID, rpcErr))
	}

	cfg, rpcErr := s.svc.GetTaskPushNotificationConfig(c, params)
	if rpcErr != nil {
		return c.JSON(jsonrpc.NewErrorResponse(req.ID, rpcErr))
	}
	return c.JSON(jsonrpc.NewResponse(req.ID, cfg))
}

func (s *Server) handleSendMessageStream(c fiber.Ctx, req jsonrpc.Request) error {
	var params a2a.MessageSendParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return c.JSON(jsonrpc.NewErrorResponse(req.ID, rpcErr))
	}

	events, rpcErr := s.svc.SendMessageStream(c, params, s.handler)
	if rpcErr != nil {
		return c.JSON(jsonrpc.NewErrorResponse(req.ID, rpcErr))
	}

	return s.streamSSE(c, events)
}

func (s *Server) handleResubscribe(c fiber.Ctx, req jsonrpc.Request) error {
	var params a2a.TaskIDParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return c.JSON(jsonrpc.NewErrorResponse(req.ID, rpcErr))
	}

	events, rpcErr := s.svc.Resubscribe(c, params)
	if rpcErr != nil {
		return c.JSON(jsonrpc.NewErrorResponse(req.ID, rpcErr))
	}

	return s.streamSSE(c, events)
}

// streamSSE bridges a <-chan a2a.Event onto an SSE response by adapting a
// net/http handler through fiber's adaptor, mirroring the teacher's
// handleEvents() bridge in pkg/service/agent.go.
func (s *Server) streamSSE(c fiber.Ctx, events <-chan a2a.Event) error {
	handler := func(w http.ResponseWriter, r *http.Request) {
		writeSSE(w, r, events)
	}
	return fiberadaptor.HTTPHandler(http.HandlerFunc(handler))(c)
}
