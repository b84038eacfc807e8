package api

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/gopm2/gopm2/internal/history"
	"github.com/gopm2/gopm2/internal/metrics"
	"github.com/gopm2/gopm2/pkg/pm2"
	"github.com/gopm2/gopm2/pkg/types"
)

// identFromPath reads the :id path parameter. A numeric value targets the
// pm_id, anything else the process name.
func identFromPath(c echo.Context) pm2.Ident {
	id := c.Param("id")
	if n, err := strconv.Atoi(id); err == nil {
		return pm2.ByPMID(n)
	}
	return pm2.ByName(id)
}

func (s *Server) record(action, target string, pmID int, err error) {
	if s.history == nil {
		return
	}
	if recErr := s.history.RecordOperation(action, target, pmID, err); recErr != nil {
		log.Printf("history: %v", recErr)
	}
}

func (s *Server) listProcesses(c echo.Context) error {
	procs, err := s.manager.List(c.Request().Context())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, procs)
}

func (s *Server) getProcess(c echo.Context) error {
	proc, err := s.manager.Get(c.Request().Context(), identFromPath(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, proc)
}

// StartRequest is the request body for starting a process.
type StartRequest struct {
	Script           string            `json:"script"`
	Name             string            `json:"name,omitempty"`
	Instances        types.Instances   `json:"instances,omitempty"`
	Env              map[string]string `json:"env,omitempty"`
	Args             []string          `json:"args,omitempty"`
	Cwd              string            `json:"cwd,omitempty"`
	Interpreter      string            `json:"interpreter,omitempty"`
	MaxMemoryRestart string            `json:"maxMemoryRestart,omitempty"`
	Watch            bool              `json:"watch,omitempty"`
}

func (s *Server) startProcess(c echo.Context) error {
	var req StartRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body: " + err.Error(),
		})
	}

	start := time.Now()
	proc, err := s.manager.Start(c.Request().Context(), req.Script, pm2.StartOptions{
		Name:             req.Name,
		Instances:        req.Instances,
		Env:              req.Env,
		Args:             req.Args,
		Cwd:              req.Cwd,
		Interpreter:      req.Interpreter,
		MaxMemoryRestart: req.MaxMemoryRestart,
		Watch:            req.Watch,
	})
	metrics.CommandDuration.WithLabelValues("start").Observe(time.Since(start).Seconds())

	target := req.Name
	if target == "" {
		target = req.Script
	}
	if err != nil {
		s.record("start", target, -1, err)
		return errorResponse(c, err)
	}
	s.record("start", proc.Name, proc.PMID, nil)
	return c.JSON(http.StatusCreated, proc)
}

func (s *Server) stopProcess(c echo.Context) error {
	return s.lifecycle(c, "stop", s.manager.Stop)
}

func (s *Server) restartProcess(c echo.Context) error {
	return s.lifecycle(c, "restart", s.manager.Restart)
}

func (s *Server) reloadProcess(c echo.Context) error {
	return s.lifecycle(c, "reload", s.manager.Reload)
}

func (s *Server) lifecycle(c echo.Context, action string, op func(ctx context.Context, id pm2.Ident) (*types.Process, error)) error {
	ident := identFromPath(c)

	start := time.Now()
	proc, err := op(c.Request().Context(), ident)
	metrics.CommandDuration.WithLabelValues(action).Observe(time.Since(start).Seconds())

	if err != nil {
		s.record(action, c.Param("id"), -1, err)
		return errorResponse(c, err)
	}
	s.record(action, proc.Name, proc.PMID, nil)
	return c.JSON(http.StatusOK, proc)
}

func (s *Server) deleteProcess(c echo.Context) error {
	ident := identFromPath(c)

	start := time.Now()
	err := s.manager.Delete(c.Request().Context(), ident)
	metrics.CommandDuration.WithLabelValues("delete").Observe(time.Since(start).Seconds())

	s.record("delete", c.Param("id"), -1, err)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"deleted": true})
}

func (s *Server) getLogs(c echo.Context) error {
	lines := 100
	if v := c.QueryParam("lines"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": "lines must be a positive integer",
			})
		}
		lines = n
	}

	logs, err := s.manager.Logs(c.Request().Context(), identFromPath(c), lines)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.String(http.StatusOK, logs)
}

func (s *Server) flushLogs(c echo.Context) error {
	err := s.manager.FlushLogs(c.Request().Context(), identFromPath(c))
	s.record("flush", c.Param("id"), -1, err)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"flushed": true})
}

// flushAllLogs flushes logs for every managed process. Deliberately a
// separate route so nobody hits the broad path by accident.
func (s *Server) flushAllLogs(c echo.Context) error {
	err := s.manager.FlushLogs(c.Request().Context(), pm2.Ident{})
	s.record("flush-all", "", -1, err)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"flushed": true})
}

func (s *Server) saveProcessList(c echo.Context) error {
	err := s.manager.Save(c.Request().Context())
	s.record("save", "", -1, err)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"saved": true})
}

func (s *Server) resurrectProcesses(c echo.Context) error {
	procs, err := s.manager.Resurrect(c.Request().Context())
	s.record("resurrect", "", -1, err)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, procs)
}

func (s *Server) listHistory(c echo.Context) error {
	if s.history == nil {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "history recording is disabled",
		})
	}
	limit := 50
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	ops, err := s.history.RecentOperations(limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": err.Error(),
		})
	}
	if ops == nil {
		ops = []history.Operation{}
	}
	return c.JSON(http.StatusOK, ops)
}
