package api

import (
	"errors"
	"log"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/wicketvision/drs-tracker/pkg/report"
	"github.com/wicketvision/drs-tracker/pkg/store"
	"github.com/wicketvision/drs-tracker/pkg/track"
)

var allowedExtensions = []string{".mp4", ".mov", ".avi", ".mkv", ".webm"}

//SetRouter builds the HTTP surface around the tracking core: upload a
//delivery video, run a tracking pass over it, and query the persisted
//trajectory and verdicts. Everything stateful lives in the store; the
//tracking configuration is fixed at router construction.
func SetRouter(st *store.Store, cfg track.Config) *gin.Engine {
	r := gin.Default()

	apiRoutes := r.Group("/api")

	apiRoutes.GET("/Videos", func(ctx *gin.Context) {
		videos, err := st.ListVideos()
		if err != nil {
			log.Printf("api/Videos: Error, got '%v'", err)
			ctx.Status(http.StatusInternalServerError)
			return
		}
		ctx.JSON(http.StatusOK, videos)
	})

	apiRoutes.POST("/Upload", func(ctx *gin.Context) {
		file, err := ctx.FormFile("video")
		if err != nil {
			ctx.Status(http.StatusBadRequest)
			return
		}

		ext := strings.ToLower(filepath.Ext(file.Filename))
		if !extensionAllowed(ext) {
			ctx.JSON(http.StatusNotAcceptable, gin.H{"error": "unsupported video format " + ext})
			return
		}

		log.Printf("api/Upload: Received new file: name - '%s', size - %v Bytes", file.Filename, file.Size)

		dstPath := path.Join(viper.GetString("directory.source"), uuid.NewString()+ext)
		if err := ctx.SaveUploadedFile(file, dstPath); err != nil {
			log.Printf("api/Upload: Could not write '%s', got '%v'", dstPath, err)
			ctx.Status(http.StatusInternalServerError)
			return
		}

		video, err := st.CreateVideo(file.Filename, dstPath)
		if err != nil {
			log.Printf("api/Upload: Error, got '%v'", err)
			ctx.Status(http.StatusInternalServerError)
			return
		}
		ctx.JSON(http.StatusCreated, video)
	})

	apiRoutes.POST("/Track/:id", func(ctx *gin.Context) {
		video, err := st.GetVideo(ctx.Param("id"))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				ctx.Status(http.StatusNotFound)
			} else {
				ctx.Status(http.StatusInternalServerError)
			}
			return
		}

		src, err := track.OpenVideoFile(video.Path)
		if err != nil {
			log.Printf("api/Track: Could not open video '%s', got '%v'", video.Path, err)
			_ = st.UpdateVideoStatus(video.ID, store.StatusFailed)
			ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		defer src.Close()

		if err := st.UpdateVideoStatus(video.ID, store.StatusProcessing); err != nil {
			log.Printf("api/Track: Error, got '%v'", err)
		}

		result, err := track.Run(ctx.Request.Context(), src, video.ID, cfg)
		if err != nil {
			log.Printf("api/Track: Run failed for video '%s', got '%v'", video.ID, err)
			_ = st.UpdateVideoStatus(video.ID, store.StatusFailed)
			ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}

		if err := st.SaveResult(result); err != nil {
			log.Printf("api/Track: Could not save result for video '%s', got '%v'", video.ID, err)
			ctx.Status(http.StatusInternalServerError)
			return
		}
		if err := st.UpdateVideoStatus(video.ID, store.StatusProcessed); err != nil {
			log.Printf("api/Track: Error, got '%v'", err)
		}

		//Review artifacts are generated in the background; they are aids, not
		//part of the tracking result.
		readyDir := viper.GetString("directory.ready")
		go func() {
			if err := report.WriteFile(path.Join(readyDir, video.ID+".html"), result); err != nil {
				log.Printf("api/Track: Could not write report for video '%s', got '%v'", video.ID, err)
			}
			if err := track.RenderOverlay(video.Path, path.Join(readyDir, video.ID+".avi"), result); err != nil {
				log.Printf("api/Track: Could not render overlay for video '%s', got '%v'", video.ID, err)
			}
		}()

		ctx.JSON(http.StatusOK, result)
	})

	apiRoutes.GET("/Trajectory/:id", func(ctx *gin.Context) {
		result, err := st.GetResult(ctx.Param("id"))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				ctx.Status(http.StatusNotFound)
			} else {
				ctx.Status(http.StatusInternalServerError)
			}
			return
		}
		ctx.JSON(http.StatusOK, gin.H{
			"video_id":      result.VideoID,
			"points":        result.Trajectory,
			"timestamps":    result.Trajectory.Timestamps(),
			"confidence":    result.Confidence,
			"ball_detected": result.BallDetected,
			"smoothed":      result.Smoothed,
		})
	})

	apiRoutes.GET("/Verdicts/:id", func(ctx *gin.Context) {
		result, err := st.GetResult(ctx.Param("id"))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				ctx.Status(http.StatusNotFound)
			} else {
				ctx.Status(http.StatusInternalServerError)
			}
			return
		}
		ctx.JSON(http.StatusOK, gin.H{
			"video_id": result.VideoID,
			"stumps":   result.Stumps,
			"verdicts": result.Verdicts,
			"summary":  result.Summary,
		})
	})

	apiRoutes.GET("/Play", func(ctx *gin.Context) {
		videoID := ctx.Query("id")
		if videoID == "" {
			ctx.Status(http.StatusNotAcceptable)
			return
		}

		var videoPath string
		if ctx.Query("analyzed") == "true" {
			videoPath = path.Join(viper.GetString("directory.ready"), videoID+".avi")
		} else {
			video, err := st.GetVideo(videoID)
			if err != nil {
				ctx.Status(http.StatusNotFound)
				return
			}
			videoPath = video.Path
		}

		if _, err := os.Stat(videoPath); err != nil {
			if os.IsNotExist(err) {
				ctx.Status(http.StatusNotFound)
			} else {
				ctx.Status(http.StatusInternalServerError)
			}
			return
		}

		ctx.Header("Content-Type", "video/mp4")
		http.ServeFile(ctx.Writer, ctx.Request, videoPath)
	})

	return r
}

func extensionAllowed(ext string) bool {
	for _, allowed := range allowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}
