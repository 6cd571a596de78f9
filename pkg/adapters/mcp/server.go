package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/tapestry"
	"github.com/aretw0/tapestry/internal/logging"
	"github.com/aretw0/tapestry/pkg/changelog"
	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/flow"
	"github.com/aretw0/tapestry/pkg/ports"
	"github.com/aretw0/tapestry/pkg/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// awaitTimeout caps how long run_flow waits for a background job.
const awaitTimeout = 30 * time.Second

// ToolResponse is the structured result of every session tool.
type ToolResponse struct {
	Progress string           `json:"progress,omitempty" jsonschema_description:"Progress code of the flow after the call"`
	Click    string           `json:"click,omitempty" jsonschema_description:"Outcome of a click"`
	Feedback *domain.Feedback `json:"feedback,omitempty" jsonschema_description:"Question the flow is waiting on; reply with the answer tool"`
	Entry    *changelog.Entry `json:"entry,omitempty" jsonschema_description:"Transaction undone or redone"`
	Outcome  string           `json:"outcome,omitempty" jsonschema_description:"Outcome of an awaited background job"`
	Status   tapestry.Status  `json:"status" jsonschema_description:"Session state after the call"`
}

// FlowInfo describes a flow.
type FlowInfo struct {
	Key     string `json:"key"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// Server exposes sessions as MCP tools.
type Server struct {
	sessions  *session.Manager
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// NewServer creates a new MCP Server instance.
func NewServer(sessions *session.Manager, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		sessions:  sessions,
		mcpServer: server.NewMCPServer("tapestry-mcp", strings.TrimSpace(tapestry.Version)),
		logger:    logger,
	}
	s.registerTools()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on addr using SSE until ctx ends.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	sessionArg := mcp.WithString("session_id", mcp.Required(), mcp.Description("Session to act on; created on first use"))

	s.mcpServer.AddTool(mcp.NewTool("list_flows",
		mcp.WithDescription("List the flows a session can run and whether each is enabled in its current context."),
		sessionArg,
	), s.handleListFlows)

	s.mcpServer.AddTool(mcp.NewTool("run_flow",
		mcp.WithDescription("Start a flow. Without preload the flow starts interactively and may enter a pointer mode; with preload it runs with the given values."),
		sessionArg,
		mcp.WithString("key", mcp.Required(), mcp.Description("Flow key, e.g. add-node")),
		mcp.WithString("preload", mcp.Description("JSON object of preload values (optional)")),
		mcp.WithBoolean("wait", mcp.Description("Wait for a background job to finish")),
		mcp.WithOutputSchema[ToolResponse](),
	), mcp.NewStructuredToolHandler(s.handleRunFlow))

	s.mcpServer.AddTool(mcp.NewTool("click",
		mcp.WithDescription("Send a pointer click in model coordinates to the active mode."),
		sessionArg,
		mcp.WithNumber("x", mcp.Required(), mcp.Description("X coordinate")),
		mcp.WithNumber("y", mcp.Required(), mcp.Description("Y coordinate")),
		mcp.WithBoolean("shifted", mcp.Description("Shift modifier held")),
		mcp.WithOutputSchema[ToolResponse](),
	), mcp.NewStructuredToolHandler(s.handleClick))

	s.mcpServer.AddTool(mcp.NewTool("answer",
		mcp.WithDescription("Answer the feedback request of the active flow."),
		sessionArg,
		mcp.WithString("choice", mcp.Required(), mcp.Description("ok, yes, no or cancel")),
		mcp.WithString("values", mcp.Description("JSON object of dialog values (optional)")),
		mcp.WithOutputSchema[ToolResponse](),
	), mcp.NewStructuredToolHandler(s.handleAnswer))

	s.mcpServer.AddTool(mcp.NewTool("cancel_mode",
		mcp.WithDescription("Abandon the active mode and flow, discarding uncommitted changes."),
		sessionArg,
		mcp.WithString("mask", mcp.Description("all, skip_pull_downs or skip_module_adds")),
		mcp.WithBoolean("job", mcp.Description("Also cancel the running background job")),
		mcp.WithOutputSchema[ToolResponse](),
	), mcp.NewStructuredToolHandler(s.handleCancel))

	s.mcpServer.AddTool(mcp.NewTool("undo",
		mcp.WithDescription("Undo the last committed transaction."),
		sessionArg,
		mcp.WithOutputSchema[ToolResponse](),
	), mcp.NewStructuredToolHandler(s.handleUndo))

	s.mcpServer.AddTool(mcp.NewTool("redo",
		mcp.WithDescription("Redo the last undone transaction."),
		sessionArg,
		mcp.WithOutputSchema[ToolResponse](),
	), mcp.NewStructuredToolHandler(s.handleRedo))

	s.mcpServer.AddTool(mcp.NewTool("describe_model",
		mcp.WithDescription("Describe every model of the session's network."),
		sessionArg,
	), s.handleDescribe)
}

func (s *Server) handleListFlows(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var infos []FlowInfo
	err := s.withSession(ctx, request.GetArguments(), func(ctx context.Context, eng *tapestry.Engine) error {
		c := eng.Context()
		for _, f := range eng.Flows() {
			infos = append(infos, FlowInfo{Key: f.Key(), Name: f.Name(), Enabled: f.IsEnabled(c)})
		}
		return nil
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, _ := json.Marshal(infos)
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleDescribe(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var models []tapestry.ModelSummary
	err := s.withSession(ctx, request.GetArguments(), func(_ context.Context, eng *tapestry.Engine) error {
		models = eng.Describe()
		return nil
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, _ := json.Marshal(models)
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleRunFlow(ctx context.Context, _ mcp.CallToolRequest, args map[string]interface{}) (ToolResponse, error) {
	key, _ := args["key"].(string)
	if key == "" {
		return ToolResponse{}, fmt.Errorf("key is required")
	}
	preload, err := objectArg(args, "preload")
	if err != nil {
		return ToolResponse{}, err
	}
	wait, _ := args["wait"].(bool)

	var eng *tapestry.Engine
	res, err := s.trigger(ctx, args, func(ctx context.Context, e *tapestry.Engine, res *ToolResponse) error {
		eng = e
		var env flow.Envelope
		var err error
		if preload != nil {
			env, err = e.Preload(ctx, key, preload)
		} else {
			env, err = e.Invoke(ctx, key)
		}
		setEnvelope(res, env)
		return err
	})
	if err != nil || !wait || res.Progress != domain.ProgressDoneOnThread.String() {
		return res, err
	}

	wctx, cancel := context.WithTimeout(ctx, awaitTimeout)
	defer cancel()
	job, err := eng.Await(wctx)
	if err != nil {
		return res, fmt.Errorf("await job: %w", err)
	}
	return s.trigger(ctx, args, func(_ context.Context, _ *tapestry.Engine, r *ToolResponse) error {
		r.Progress = res.Progress
		if job != nil {
			r.Outcome = job.Outcome()
		}
		return nil
	})
}

func (s *Server) handleClick(ctx context.Context, _ mcp.CallToolRequest, args map[string]interface{}) (ToolResponse, error) {
	x, okX := args["x"].(float64)
	y, okY := args["y"].(float64)
	if !okX || !okY {
		return ToolResponse{}, fmt.Errorf("x and y are required numbers")
	}
	shifted, _ := args["shifted"].(bool)
	return s.trigger(ctx, args, func(ctx context.Context, eng *tapestry.Engine, res *ToolResponse) error {
		click, err := eng.Click(ctx, domain.Point{X: x, Y: y}, shifted)
		res.Click = click.String()
		return err
	})
}

func (s *Server) handleAnswer(ctx context.Context, _ mcp.CallToolRequest, args map[string]interface{}) (ToolResponse, error) {
	choice, _ := args["choice"].(string)
	values, err := objectArg(args, "values")
	if err != nil {
		return ToolResponse{}, err
	}
	return s.trigger(ctx, args, func(ctx context.Context, eng *tapestry.Engine, res *ToolResponse) error {
		env, err := eng.Answer(ctx, domain.Answer{Choice: domain.ParseAnswer(choice), Values: values})
		setEnvelope(res, env)
		return err
	})
}

func (s *Server) handleCancel(ctx context.Context, _ mcp.CallToolRequest, args map[string]interface{}) (ToolResponse, error) {
	maskName, _ := args["mask"].(string)
	mask, err := ports.ParseCancelMask(maskName)
	if err != nil {
		return ToolResponse{}, err
	}
	job, _ := args["job"].(bool)
	return s.trigger(ctx, args, func(_ context.Context, eng *tapestry.Engine, _ *ToolResponse) error {
		if job {
			eng.CancelJob()
		}
		eng.CancelMode(mask)
		return nil
	})
}

func (s *Server) handleUndo(ctx context.Context, _ mcp.CallToolRequest, args map[string]interface{}) (ToolResponse, error) {
	return s.trigger(ctx, args, func(ctx context.Context, eng *tapestry.Engine, res *ToolResponse) error {
		entry, err := eng.Undo(ctx)
		if err == nil {
			res.Entry = &entry
		}
		return err
	})
}

func (s *Server) handleRedo(ctx context.Context, _ mcp.CallToolRequest, args map[string]interface{}) (ToolResponse, error) {
	return s.trigger(ctx, args, func(ctx context.Context, eng *tapestry.Engine, res *ToolResponse) error {
		entry, err := eng.Redo(ctx)
		if err == nil {
			res.Entry = &entry
		}
		return err
	})
}

// trigger runs fn on the session and fills the status. Engine errors are
// returned so the client sees a tool error.
func (s *Server) trigger(ctx context.Context, args map[string]interface{}, fn func(context.Context, *tapestry.Engine, *ToolResponse) error) (ToolResponse, error) {
	var res ToolResponse
	var runErr error
	err := s.withSession(ctx, args, func(ctx context.Context, eng *tapestry.Engine) error {
		runErr = fn(ctx, eng, &res)
		res.Status = eng.Status()
		return nil
	})
	if err != nil {
		return res, err
	}
	if runErr != nil {
		s.logger.Debug("MCP tool failed", "session_id", res.Status.SessionID, "err", runErr)
	}
	return res, runErr
}

func (s *Server) withSession(ctx context.Context, args map[string]interface{}, fn func(context.Context, *tapestry.Engine) error) error {
	id, _ := args["session_id"].(string)
	if id == "" {
		return fmt.Errorf("session_id is required")
	}
	if _, err := s.sessions.Create(ctx, id); err != nil {
		return err
	}
	return s.sessions.Do(ctx, id, fn)
}

func setEnvelope(res *ToolResponse, env flow.Envelope) {
	res.Progress = env.Progress.String()
	if env.Click != domain.ClickNone {
		res.Click = env.Click.String()
	}
	res.Feedback = env.Feedback
}

// objectArg accepts either a JSON object or a string holding one.
func objectArg(args map[string]interface{}, key string) (map[string]any, error) {
	switch v := args[key].(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return v, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		var out map[string]any
		if err := json.Unmarshal([]byte(v), &out); err != nil {
			return nil, fmt.Errorf("%s: invalid JSON object: %w", key, err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s: expected a JSON object, got %T", key, v)
	}
}
