package web

import (
	"context"
	"embed"
	"html/template"
	"io"
	"net/http"

	"github.com/bbernhard/tumorscan-playground/src/commons"
	datastructures "github.com/bbernhard/tumorscan-playground/src/datastructures"
	"github.com/bbernhard/tumorscan-playground/src/predict"
	"github.com/bbernhard/tumorscan-playground/src/session"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const defaultHistoryLimit = 10

// Service is the remote prediction service as seen by the pages.
type Service interface {
	PredictReport(ctx context.Context, filename string, contentType string, r io.Reader) (string, error)
	Predictions(ctx context.Context, limit int) ([]datastructures.PredictionResult, error)
	Statistics(ctx context.Context) (*datastructures.Statistics, error)
}

type Submitter interface {
	Submit(job predict.Job) error
}

type Options struct {
	Release       bool
	MaxUploadSize int64
	HistoryLimit  int
}

type Server struct {
	slot         *session.Slot
	service      Service
	submitter    Submitter
	maxUpload    int64
	historyLimit int
	router       *gin.Engine
}

func NewServer(slot *session.Slot, service Service, submitter Submitter, opts Options) (*Server, error) {
	tmpl, err := template.New("").ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, err
	}

	s := &Server{
		slot:         slot,
		service:      service,
		submitter:    submitter,
		maxUpload:    opts.MaxUploadSize,
		historyLimit: opts.HistoryLimit,
	}
	if s.historyLimit <= 0 {
		s.historyLimit = defaultHistoryLimit
	}

	var router *gin.Engine
	if opts.Release {
		router = gin.New()
		router.Use(requestLogger(), gin.Recovery())
	} else {
		router = gin.Default()
	}
	if s.maxUpload > 0 {
		router.MaxMultipartMemory = s.maxUpload
	}
	router.SetHTMLTemplate(tmpl)
	s.router = router
	s.routes()

	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	pages := s.router.Group("/", withSession())
	{
		pages.GET("/", s.landing)
		pages.GET("/history", s.history)
		pages.GET("/statistics", s.statistics)

		prediction := pages.Group("/prediction")
		{
			prediction.GET("", s.predictionPage)
			prediction.POST("/file", s.selectFile)
			prediction.POST("/remove", s.removeFile)
			prediction.POST("/submit", s.submit)
			prediction.GET("/preview", s.preview)
			prediction.GET("/report", s.report)
		}
	}

	v1 := s.router.Group("/v1", cors(), withSession())
	{
		v1.OPTIONS("/state", func(c *gin.Context) {
			c.JSON(http.StatusOK, struct{}{})
		})
		v1.GET("/state", s.state)
	}
}

// NewSettleFunc stores the outcome of a finished submission in the submitting session.
func NewSettleFunc(slot *session.Slot) predict.SettleFunc {
	return func(ctx context.Context, job predict.Job, outcome predict.Outcome) {
		if !outcome.Ok() && outcome.Failure != nil {
			log.Info("[Predicting] Prediction for session ", job.SessionId, " failed: ", outcome.Failure.Message)
		}

		if _, err := slot.Settle(ctx, job.SessionId, outcome); err != nil {
			log.Error("[Predicting] Couldn't store prediction outcome: ", err.Error())
			commons.ReportError(err, map[string]string{"stage": "settle"})
		}
	}
}
