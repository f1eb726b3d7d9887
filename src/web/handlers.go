package web

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/bbernhard/tumorscan-playground/src/commons"
	datastructures "github.com/bbernhard/tumorscan-playground/src/datastructures"
	"github.com/bbernhard/tumorscan-playground/src/display"
	"github.com/bbernhard/tumorscan-playground/src/predict"
	"github.com/bbernhard/tumorscan-playground/src/preview"
	"github.com/bbernhard/tumorscan-playground/src/session"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	failureInvalidFile = "invalid_file"
	failureNoFile      = "no_file"
	failureInFlight    = "in_flight"
)

func (s *Server) landing(c *gin.Context) {
	c.HTML(http.StatusOK, "landing.tmpl", gin.H{
		"Title":    "Brain Tumor Detection",
		"Nav":      "home",
		"Hero":     hero,
		"Benefits": benefits,
		"Services": services,
		"Plans":    plans,
	})
}

func (s *Server) predictionPage(c *gin.Context) {
	st, err := s.slot.State(c.Request.Context(), sessionId(c))
	if err != nil {
		s.internalError(c, "Couldn't load page state", err)
		return
	}
	s.renderPrediction(c, http.StatusOK, st, nil)
}

func (s *Server) renderPrediction(c *gin.Context, status int, st *session.PageState, failure *predict.Failure) {
	if failure == nil {
		failure = st.Failure
	}
	c.HTML(status, "prediction.tmpl", gin.H{
		"Title":   "Prediction",
		"Nav":     "prediction",
		"State":   st,
		"Failure": failure,
		"View":    display.NewView(st.Result),
		"Refresh": st.Loading,
	})
}

func (s *Server) renderPredictionWithFailure(c *gin.Context, status int, failure *predict.Failure) {
	st, err := s.slot.State(c.Request.Context(), sessionId(c))
	if err != nil {
		s.internalError(c, "Couldn't load page state", err)
		return
	}
	s.renderPrediction(c, status, st, failure)
}

func (s *Server) selectFile(c *gin.Context) {
	if s.maxUpload > 0 {
		//leave some room for the multipart envelope
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload+(1<<20))
	}

	header, err := c.FormFile("file")
	if err != nil {
		log.Debug("[Upload] Picture is missing: ", err.Error())
		s.renderPredictionWithFailure(c, http.StatusBadRequest, &predict.Failure{
			Kind:    failureInvalidFile,
			Message: "Picture is missing - please choose an image.",
		})
		return
	}

	file, err := header.Open()
	if err != nil {
		s.internalError(c, "Couldn't read upload", err)
		return
	}
	defer file.Close()

	contentType, r, err := sniffContentType(header, file)
	if err != nil {
		s.internalError(c, "Couldn't read upload", err)
		return
	}

	_, err = s.slot.Select(c.Request.Context(), sessionId(c), header.Filename, contentType, r)
	if err != nil {
		switch errors.Cause(err) {
		case preview.ErrNotAnImage:
			s.renderPredictionWithFailure(c, http.StatusBadRequest, &predict.Failure{
				Kind:    failureInvalidFile,
				Message: "File must be an image.",
			})
			return
		case preview.ErrTooLarge:
			s.renderPredictionWithFailure(c, http.StatusRequestEntityTooLarge, &predict.Failure{
				Kind:    failureInvalidFile,
				Message: "The image is too large.",
			})
			return
		}
		s.internalError(c, "Couldn't select image", err)
		return
	}

	c.Redirect(http.StatusSeeOther, "/prediction")
}

// sniffContentType trusts an image/* content type sent by the browser and
// falls back to sniffing the first bytes of the upload otherwise.
func sniffContentType(header *multipart.FileHeader, file multipart.File) (string, io.Reader, error) {
	contentType := header.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "image/") {
		return contentType, file, nil
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", nil, err
	}
	head = head[:n]
	return http.DetectContentType(head), io.MultiReader(bytes.NewReader(head), file), nil
}

func (s *Server) removeFile(c *gin.Context) {
	if _, err := s.slot.Remove(c.Request.Context(), sessionId(c)); err != nil {
		s.internalError(c, "Couldn't remove image", err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/prediction")
}

func (s *Server) submit(c *gin.Context) {
	ctx := c.Request.Context()
	id := sessionId(c)

	_, err := s.slot.BeginSubmit(ctx, id)
	switch errors.Cause(err) {
	case nil:
	case session.ErrNoFileSelected:
		s.renderPredictionWithFailure(c, http.StatusBadRequest, &predict.Failure{
			Kind:    failureNoFile,
			Message: "No image selected - please choose an image first.",
		})
		return
	case session.ErrSubmissionInFlight:
		s.renderPredictionWithFailure(c, http.StatusConflict, &predict.Failure{
			Kind:    failureInFlight,
			Message: "A prediction is already running.",
		})
		return
	default:
		s.internalError(c, "Couldn't start prediction", err)
		return
	}

	file, data, err := s.slot.Upload(ctx, id)
	if err == nil {
		err = s.submitter.Submit(predict.Job{
			SessionId:   id,
			Filename:    file.Name,
			ContentType: file.ContentType,
			Data:        data,
		})
	}
	if err != nil {
		log.Debug("[Predicting] Couldn't accept request: ", err.Error())
		if _, settleErr := s.slot.Settle(ctx, id, predict.Failed(err)); settleErr != nil {
			s.internalError(c, "Couldn't accept request", settleErr)
			return
		}
	}

	c.Redirect(http.StatusSeeOther, "/prediction")
}

func (s *Server) preview(c *gin.Context) {
	path, err := s.slot.Thumbnail(c.Request.Context(), sessionId(c))
	if err != nil {
		c.Status(http.StatusNotFound)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.File(path)
}

func (s *Server) report(c *gin.Context) {
	ctx := c.Request.Context()

	file, data, err := s.slot.Upload(ctx, sessionId(c))
	if errors.Cause(err) == session.ErrNoFileSelected {
		c.String(http.StatusNotFound, "No image selected.")
		return
	}
	if err != nil {
		s.internalError(c, "Couldn't read selected image", err)
		return
	}

	report, err := s.service.PredictReport(ctx, file.Name, file.ContentType, bytes.NewReader(data))
	if err != nil {
		c.String(http.StatusBadGateway, predict.NewFailure(err).Message)
		return
	}
	c.Header("Content-Disposition", `inline; filename="report.txt"`)
	c.String(http.StatusOK, report)
}

func (s *Server) history(c *gin.Context) {
	results, err := s.service.Predictions(c.Request.Context(), s.historyLimit)
	if err != nil {
		c.HTML(http.StatusBadGateway, "history.tmpl", gin.H{
			"Title":   "History",
			"Nav":     "history",
			"Failure": predict.NewFailure(err),
			"View":    display.NewView(),
		})
		return
	}

	ptrs := make([]*datastructures.PredictionResult, len(results))
	for i := range results {
		ptrs[i] = &results[i]
	}
	c.HTML(http.StatusOK, "history.tmpl", gin.H{
		"Title": "History",
		"Nav":   "history",
		"View":  display.NewView(ptrs...),
	})
}

func (s *Server) statistics(c *gin.Context) {
	stats, err := s.service.Statistics(c.Request.Context())
	if err != nil {
		c.HTML(http.StatusBadGateway, "statistics.tmpl", gin.H{
			"Title":   "Statistics",
			"Nav":     "statistics",
			"Failure": predict.NewFailure(err),
		})
		return
	}

	c.HTML(http.StatusOK, "statistics.tmpl", gin.H{
		"Title": "Statistics",
		"Nav":   "statistics",
		"Stats": display.NewStatisticsView(stats),
	})
}

func (s *Server) state(c *gin.Context) {
	st, err := s.slot.State(c.Request.Context(), sessionId(c))
	if err != nil {
		log.Debug("[State] Couldn't load page state: ", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Couldn't load page state - please try again later"})
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) internalError(c *gin.Context, msg string, err error) {
	log.Error("[Web] ", msg, ": ", err.Error())
	commons.ReportError(err, map[string]string{"path": c.FullPath()})
	c.String(http.StatusInternalServerError, msg+" - please try again later")
}
