package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"rollcall/internal/batch"
	"rollcall/internal/config"
	"rollcall/internal/deviceclient"
	"rollcall/internal/metrics"
	"rollcall/internal/queue"
	"rollcall/internal/reconcile"
	"rollcall/internal/roster"
	"rollcall/internal/store"
	"rollcall/internal/swipe"
	"rollcall/internal/timetable"
)

// Worker drains queued swipe batches and runs reconciliation outside
// the request path. It can also pull a day's export straight from the
// biometric terminal when asked.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	if err := store.Migrate(db.Client); err != nil {
		log.Fatalf("migrations failed: %v", err)
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
	engine := reconcile.NewEngine(directory, resolver, attRepo)

	device := deviceclient.New(cfg.DeviceURL, cfg.DeviceSkip)
	if !cfg.DeviceSkip {
		if err := device.Health(ctx); err != nil {
			log.Printf("WARNING: biometric terminal not available: %v", err)
		} else {
			log.Println("biometric terminal connected")
		}
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for messages...")
	for msg := range messages {
		switch msg.Type {
		case queue.TypeSwipeBatch:
			processBatch(ctx, engine, stage, msg.Ref)
		case queue.TypeDevicePull:
			pullAndReconcile(ctx, engine, device, msg.Ref)
		default:
			log.Printf("unknown message type %q, dropping", msg.Type)
		}
	}

	log.Println("worker stopped")
}

func processBatch(ctx context.Context, engine *reconcile.Engine, stage *batch.Stage, id string) {
	log.Printf("processing batch %s", id)

	events, err := stage.Get(ctx, id)
	if err != nil {
		if errors.Is(err, batch.ErrNotFound) {
			log.Printf("batch %s expired before processing", id)
		} else {
			log.Printf("load batch %s failed: %v", id, err)
		}
		return
	}

	sum, err := engine.Reconcile(ctx, events)
	if err != nil {
		log.Printf("batch %s failed: %v (partial: %+v)", id, err, sum)
		return
	}
	metrics.ObserveSummary(sum)
	logSummary(id, sum)

	_ = stage.Delete(ctx, id)
}

func pullAndReconcile(ctx context.Context, engine *reconcile.Engine, device *deviceclient.Client, date string) {
	log.Printf("pulling terminal export for %s", date)

	data, err := device.Export(ctx, date)
	if err != nil {
		log.Printf("device export for %s failed: %v", date, err)
		return
	}
	events, _, err := swipe.Parse(data, swipe.FormatDelimited)
	if err != nil {
		if errors.Is(err, swipe.ErrNoRecords) {
			log.Printf("terminal export for %s has no records", date)
		} else {
			log.Printf("parse terminal export for %s failed: %v", date, err)
		}
		return
	}

	sum, err := engine.Reconcile(ctx, events)
	if err != nil {
		log.Printf("reconcile pulled export for %s failed: %v", date, err)
		return
	}
	metrics.ObserveSummary(sum)
	logSummary("pull:"+date, sum)
}

func logSummary(ref string, sum reconcile.Summary) {
	log.Printf("%s done: %d swipes, %d sessions created, %d present, %d absent, %d dups, %d unknown rolls, %d warnings",
		ref, sum.TotalSwipes, sum.SessionsCreated, sum.AttendanceMarked, sum.AbsentMarked,
		sum.DuplicatesSkipped, sum.StudentsNotFound, len(sum.Warnings))
	for _, w := range sum.Warnings {
		log.Printf("  warning: %s", w)
	}
}
