package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rollcall/internal/auth"
	"rollcall/internal/batch"
	"rollcall/internal/config"
	"rollcall/internal/httpmiddleware"
	"rollcall/internal/metrics"
	"rollcall/internal/penalty"
	"rollcall/internal/queue"
	"rollcall/internal/reconcile"
	"rollcall/internal/roster"
	"rollcall/internal/store"
	"rollcall/internal/swipe"
	"rollcall/internal/timetable"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := store.Migrate(db.Client); err != nil {
		return err
	}

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "rollcall:uploads")
	}
	stage := batch.NewStage(redisClient.Client, cfg.BatchTTL)

	directory := roster.NewRepository(db.Client)
	resolver := timetable.NewRepository(db.Client)
	attRepo := reconcile.NewRepository(db.Client)
	authRepo := auth.NewRepository(db.Client)
	engine := reconcile.NewEngine(directory, resolver, attRepo)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	// Penalty evaluation is pure and read-only; any reporting surface
	// may call it without credentials.
	r.GET("/v1/penalty", func(c *gin.Context) {
		credits, err1 := strconv.Atoi(c.DefaultQuery("credits", "3"))
		absences, err2 := strconv.Atoi(c.DefaultQuery("absences", "0"))
		lates, err3 := strconv.Atoi(c.DefaultQuery("lates", "0"))
		if err1 != nil || err2 != nil || err3 != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "credits, absences and lates must be integers"})
			return
		}
		c.JSON(http.StatusOK, penalty.Evaluate(credits, absences, lates))
	})

	r.POST("/v1/staff/register", func(c *gin.Context) {
		var req struct {
			StaffID string `json:"staff_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		tokens, err := auth.Issue(req.StaffID, auth.RoleStaff, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}

		_ = authRepo.SaveRefreshToken(c.Request.Context(), req.StaffID, tokens.RefreshToken, tokens.RefreshExp)

		c.JSON(http.StatusCreated, gin.H{
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_at":    tokens.AccessExp.Unix(),
		})
	})

	authGroup := r.Group("/v1", auth.StaffAuth(cfg.JWTSigningKey, cfg.JWTIssuer))

	// Swipe file upload. Accepts a multipart "file" field or the raw
	// file bytes with ?filename=. Parsing failures reject the request
	// before anything touches the store. By default the batch is staged
	// and queued for the worker; ?sync=1 reconciles inline and returns
	// the summary.
	authGroup.POST("/uploads/swipes", func(c *gin.Context) {
		filename, data, err := readUpload(c, cfg.MaxUploadBytes)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		format, err := swipe.DetectFormat(filename)
		if err != nil {
			c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "unsupported file type: " + filename})
			return
		}

		events, rowsRead, err := swipe.Parse(data, format)
		switch {
		case errors.Is(err, swipe.ErrNoRecords):
			c.JSON(http.StatusBadRequest, gin.H{"error": "file contains no usable swipe records"})
			return
		case errors.Is(err, swipe.ErrUnsupportedFormat):
			c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": err.Error()})
			return
		case err != nil:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := attRepo.RecordUpload(c.Request.Context(), filename, rowsRead, len(events)); err != nil {
			log.Printf("upload audit write failed: %v", err)
		}

		if c.Query("sync") == "1" {
			sum, err := engine.Reconcile(c.Request.Context(), events)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "partial_summary": sum})
				return
			}
			metrics.ObserveSummary(sum)
			c.JSON(http.StatusOK, sum)
			return
		}

		id, err := stage.Put(c.Request.Context(), events)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "staging batch failed"})
			return
		}
		if err := q.Publish(c.Request.Context(), queue.Message{Type: queue.TypeSwipeBatch, Ref: id}); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "enqueue failed"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{
			"batch_id": id,
			"accepted": len(events),
			"rows":     rowsRead,
		})
	})

	// Office corrections: LT and P# can only enter the system here, and
	// a manual mark is never undone by a later file re-upload.
	authGroup.POST("/attendance/manual", func(c *gin.Context) {
		var req struct {
			SessionID string  `json:"session_id" binding:"required"`
			StudentID string  `json:"student_id" binding:"required"`
			Status    string  `json:"status" binding:"required"`
			SwipeTime *string `json:"swipe_time"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := attRepo.UpsertManual(c.Request.Context(), req.SessionID, req.StudentID, reconcile.Status(req.Status), req.SwipeTime); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		rec, err := attRepo.FindAttendance(c.Request.Context(), req.SessionID, req.StudentID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, rec)
	})

	authGroup.GET("/sessions/:id/attendance", func(c *gin.Context) {
		records, err := attRepo.ListBySession(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"records": records})
	})

	// Per-student course penalty from the persisted counts.
	authGroup.GET("/students/:id/penalty", func(c *gin.Context) {
		courseID := c.Query("course_id")
		if courseID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "course_id required"})
			return
		}
		credits, err := strconv.Atoi(c.DefaultQuery("credits", "3"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "credits must be an integer"})
			return
		}
		absences, lates, err := attRepo.AttendanceCounts(c.Request.Context(), c.Param("id"), courseID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, penalty.Evaluate(credits, absences, lates))
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// readUpload extracts the swipe file from a multipart form or the raw
// request body.
func readUpload(c *gin.Context, maxBytes int) (filename string, data []byte, err error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, int64(maxBytes))

	if strings.Contains(c.ContentType(), "multipart/form-data") {
		file, header, ferr := c.Request.FormFile("file")
		if ferr != nil {
			return "", nil, errors.New("file field required")
		}
		defer file.Close()
		data, err = io.ReadAll(file)
		if err != nil {
			return "", nil, errors.New("read file failed")
		}
		return header.Filename, data, nil
	}

	filename = c.Query("filename")
	if filename == "" {
		return "", nil, errors.New("filename query parameter required for raw uploads")
	}
	data, err = io.ReadAll(c.Request.Body)
	if err != nil {
		return "", nil, errors.New("read body failed")
	}
	return filename, data, nil
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
