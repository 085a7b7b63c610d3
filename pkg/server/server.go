package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"stegoscope/pkg/config"
	"stegoscope/pkg/format"
	"stegoscope/pkg/models"
	"stegoscope/pkg/pipeline"
)

// SubmissionState tracks an asynchronous submission through its lifecycle.
type SubmissionState string

const (
	StatePending   SubmissionState = "pending"
	StateRunning   SubmissionState = "running"
	StateCompleted SubmissionState = "completed"
	StateError     SubmissionState = "error"
)

type entry struct {
	State  SubmissionState `json:"status"`
	Report *models.Report  `json:"report,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Server exposes the submission interface over HTTP: a synchronous analyze
// endpoint and an asynchronous submission store resolvable to a report. It
// owns no analysis logic beyond calling the pipeline.
type Server struct {
	cfg *config.Config

	mu      sync.RWMutex
	pending map[string]*entry
}

// New builds a server around the given configuration.
func New(cfg *config.Config) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Server{cfg: cfg, pending: make(map[string]*entry)}
}

// Router assembles the gin route table.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.MaxMultipartMemory = int64(s.cfg.Server.MaxUploadMB) << 20

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	v1.POST("/analyze", s.handleAnalyze)
	v1.POST("/submissions", s.handleSubmit)
	v1.GET("/submissions/:id", s.handleStatus)
	return r
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.cfg.Server.Listen, Handler: s.Router()}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.WithField("listen", s.cfg.Server.Listen).Info("submission interface up")

	select {
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}

func (s *Server) options(c *gin.Context, filename string) pipeline.Options {
	return pipeline.Options{
		Deep:           c.Query("deep") == "true",
		Password:       c.Query("password"),
		FormatHint:     models.Format(c.Query("format")),
		Filename:       filename,
		Workers:        s.cfg.Workers,
		DefaultTimeout: s.cfg.GetDefaultTimeout(),
		ArtifactDir:    s.cfg.ArtifactDir,
		Registry:       s.cfg.BuildRegistry(),
	}
}

// handleAnalyze runs the pipeline synchronously and returns the report.
func (s *Server) handleAnalyze(c *gin.Context) {
	data, filename, err := readCarrier(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rep, err := pipeline.Analyze(c.Request.Context(), data, s.options(c, filename))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, format.ErrEmptySubmission) || errors.Is(err, format.ErrUnreadableSubmission) {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rep)
}

// handleSubmit queues an asynchronous analysis and returns a submission id.
func (s *Server) handleSubmit(c *gin.Context) {
	data, filename, err := readCarrier(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Reject unreadable submissions up front rather than parking a job
	// that can only fail.
	if _, err := format.Detect(data); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	id := uuid.NewString()
	s.mu.Lock()
	s.pending[id] = &entry{State: StatePending}
	s.mu.Unlock()

	opts := s.options(c, filename)
	go s.runAsync(id, data, opts)

	c.JSON(http.StatusAccepted, gin.H{"id": id, "status": StatePending})
}

func (s *Server) runAsync(id string, data []byte, opts pipeline.Options) {
	s.setState(id, func(e *entry) { e.State = StateRunning })

	rep, err := pipeline.Analyze(context.Background(), data, opts)
	if err != nil {
		log.WithError(err).WithField("id", id).Warn("async analysis failed")
		s.setState(id, func(e *entry) {
			e.State = StateError
			e.Error = err.Error()
		})
		return
	}
	s.setState(id, func(e *entry) {
		e.State = StateCompleted
		e.Report = rep
	})
}

func (s *Server) setState(id string, apply func(*entry)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.pending[id]; ok {
		apply(e)
	}
}

// handleStatus resolves a submission id to its state and, once completed,
// the report.
func (s *Server) handleStatus(c *gin.Context) {
	id := c.Param("id")
	s.mu.RLock()
	e, ok := s.pending[id]
	var snapshot entry
	if ok {
		snapshot = *e
	}
	s.mu.RUnlock()

	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown submission id"})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// readCarrier accepts either a multipart upload under "image" or the raw
// request body.
func readCarrier(c *gin.Context) ([]byte, string, error) {
	if file, err := c.FormFile("image"); err == nil {
		f, err := file.Open()
		if err != nil {
			return nil, "", err
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		return data, file.Filename, err
	}
	data, err := io.ReadAll(c.Request.Body)
	return data, "upload", err
}
