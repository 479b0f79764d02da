// Package replicate mirrors finished captures to S3-compatible object
// storage and, optionally, a second local folder. It is a durable subscriber
// on the completion topic: uploads are retried by queue redelivery, and the
// per-job storage sub-statuses keep repeated deliveries idempotent.
package replicate

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"radiorec/internal/app/bus"
	"radiorec/internal/app/model"
	"radiorec/internal/app/repository"
	"radiorec/internal/config"
)

// SubscribeBus is the slice of the bus the replicator uses.
type SubscribeBus interface {
	Subscribe(ctx context.Context, group, consumer, topic string, handler func(bus.Message) error)
}

// ObjectStore uploads one local file. Satisfied by *minio.Client.
type ObjectStore interface {
	FPutObject(ctx context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Replicator uploads completed captures and records the outcome on the job.
// objects may be nil when only the local copy is configured.
type Replicator struct {
	store    repository.JobDAO
	bus      SubscribeBus
	objects  ObjectStore
	bucket   string
	baseDir  string
	localDir string
	logger   *zap.Logger
	consumer string
}

func NewReplicator(store repository.JobDAO, mbus SubscribeBus, objects ObjectStore, cfg config.Minio, localCopyDir string, logger *zap.Logger) *Replicator {
	return &Replicator{
		store:    store,
		bus:      mbus,
		objects:  objects,
		bucket:   cfg.Bucket,
		baseDir:  cfg.BaseDir,
		localDir: localCopyDir,
		logger:   logger,
		consumer: "replicator-" + uuid.NewString(),
	}
}

// NewObjectStore connects to the configured MinIO endpoint.
func NewObjectStore(cfg config.Minio) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to object storage: %w", err)
	}
	return client, nil
}

// Run consumes completion events until ctx is done.
func (r *Replicator) Run(ctx context.Context) {
	r.logger.Info("replicator running", zap.String("bucket", r.bucket))
	r.bus.Subscribe(ctx, bus.GroupStorage, r.consumer, bus.TopicCompleted, func(m bus.Message) error {
		var event bus.CompletedEvent
		if err := m.Decode(&event); err != nil {
			r.logger.Error("dropping bad completion event", zap.Error(err))
			return nil
		}
		return r.handle(ctx, event)
	})
}

// handle replicates one completed capture. A nil return acks the message;
// transient store errors are returned so the entry stays pending and gets
// redelivered.
func (r *Replicator) handle(ctx context.Context, event bus.CompletedEvent) error {
	if event.Status != string(model.PhaseComplete) && event.Status != string(model.PhasePartial) {
		return nil
	}

	job, err := r.store.GetJob(ctx, event.JobID)
	if err != nil {
		return fmt.Errorf("failed to read job %d: %w", event.JobID, err)
	}
	if job.FilePath == "" {
		r.logger.Warn("completed job has no output file, skipping replication",
			zap.Int64("job_id", job.ID))
		return nil
	}

	r.copyLocal(ctx, job)

	if r.objects == nil {
		return nil
	}
	if job.RemoteStorage != model.StoragePending {
		r.logger.Info("job already replicated, skipping",
			zap.Int64("job_id", job.ID), zap.String("remote_storage", job.RemoteStorage))
		return nil
	}

	object := path.Join(r.baseDir, filepath.Base(job.FilePath))
	started := time.Now()
	info, err := r.objects.FPutObject(ctx, r.bucket, object, job.FilePath, minio.PutObjectOptions{
		ContentType: contentTypeFor(job.Format),
	})
	if err != nil {
		r.logger.Error("upload failed",
			zap.Int64("job_id", job.ID), zap.String("object", object), zap.Error(err))
		if err := r.store.UpdateRemoteStorage(ctx, job.ID, model.StorageFailed); err != nil {
			return fmt.Errorf("failed to record replication failure for job %d: %w", job.ID, err)
		}
		return nil
	}

	if err := r.store.UpdateRemoteStorage(ctx, job.ID, model.StorageSuccess); err != nil {
		return fmt.Errorf("failed to record replication success for job %d: %w", job.ID, err)
	}
	r.logger.Info("replicated capture",
		zap.Int64("job_id", job.ID),
		zap.String("object", object),
		zap.Int64("size", info.Size),
		zap.Duration("elapsed", time.Since(started)))
	return nil
}

// copyLocal mirrors the capture into the secondary local folder, laid out as
// <dir>/<name>/<year>/<mm-Mon>/. The outcome lands in the local_storage
// sub-status; a failed copy never blocks remote replication.
func (r *Replicator) copyLocal(ctx context.Context, job *model.Job) {
	if r.localDir == "" || job.LocalStorage != model.StoragePending {
		return
	}

	dir := filepath.Join(r.localDir, job.Name,
		strconv.Itoa(job.StartTime.Year()), job.StartTime.Format("01-Jan"))
	dest := filepath.Join(dir, filepath.Base(job.FilePath))

	status := model.StorageSuccess
	if err := copyFile(job.FilePath, dir, dest); err != nil {
		status = model.StorageFailed
		r.logger.Error("local copy failed",
			zap.Int64("job_id", job.ID), zap.String("dest", dest), zap.Error(err))
	} else {
		r.logger.Info("copied capture to local folder",
			zap.Int64("job_id", job.ID), zap.String("dest", dest))
	}
	if err := r.store.UpdateLocalStorage(ctx, job.ID, status); err != nil {
		r.logger.Error("failed to record local copy outcome",
			zap.Int64("job_id", job.ID), zap.Error(err))
	}
}

func copyFile(src, destDir, dest string) error {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func contentTypeFor(format string) string {
	switch format {
	case "mp3":
		return "audio/mpeg"
	case "aac":
		return "audio/aac"
	case "m4a", "mp4":
		return "audio/mp4"
	default:
		return "application/octet-stream"
	}
}
