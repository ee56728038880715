package stream

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/matt-g-everett/ugoiratx/ugoira"
)

// Stage labels for failures outside the pipeline itself.
const (
	stageQueue = "queue"
	stageFetch = "fetch"
	stageSave  = "save"
)

// Fetcher supplies archive bytes for a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Saver stores a finished artifact and returns where it can be downloaded.
type Saver interface {
	Save(id string, art *ugoira.Artifact) (string, error)
}

// Controller takes jobs off the MQTT jobs topic and runs them one at a
// time, so no two runs ever compete for memory or CPU.
type Controller struct {
	config   Config
	client   mqtt.Client
	streamer *Streamer
	fetcher  Fetcher
	saver    Saver
	driver   *ugoira.Driver
	jobs     chan queuedJob

	mu      sync.Mutex
	current string
	cancel  context.CancelFunc
	seq     uint64
	pending map[string]*pendingJob
}

// queuedJob is one entry on the jobs channel. gen tells it apart from other
// entries queued under the same id.
type queuedJob struct {
	job JobMessage
	gen uint64
}

// pendingJob tracks the newest queued entry for an id. Older entries for the
// same id are superseded and dropped when they reach the front.
type pendingJob struct {
	gen       uint64
	cancelled bool
}

// NewController creates an instance of a Controller.
func NewController(config Config, client mqtt.Client, streamer *Streamer,
	fetcher Fetcher, saver Saver, driver *ugoira.Driver) *Controller {

	c := new(Controller)
	c.config = config
	c.client = client
	c.streamer = streamer
	c.fetcher = fetcher
	c.saver = saver
	c.driver = driver

	queueSize := config.QueueSize
	if queueSize <= 0 {
		queueSize = 1
	}
	c.jobs = make(chan queuedJob, queueSize)
	c.pending = make(map[string]*pendingJob)
	return c
}

// Subscribe starts listening on the jobs topic.
func (c *Controller) Subscribe() error {
	token := c.client.Subscribe(c.config.Mqtt.Topics.Jobs, c.config.Mqtt.Qos, c.handleJobMessages)
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("Subscribed to %s", c.config.Mqtt.Topics.Jobs)
	return nil
}

func (c *Controller) handleJobMessages(client mqtt.Client, msg mqtt.Message) {
	log.Printf("Received msg %d on %s", msg.MessageID(), msg.Topic())
	c.HandlePayload(msg.Payload())
}

// HandlePayload acts on one JSON job message.
func (c *Controller) HandlePayload(payload []byte) {
	var job JobMessage
	if err := json.Unmarshal(payload, &job); err != nil {
		log.Printf("Ignoring malformed job message: %v", err)
		return
	}

	switch job.Type {
	case JobStart:
		c.enqueue(job)
	case JobCancel:
		c.cancelJob(job.ID)
	default:
		log.Printf("Ignoring job message of type %q", job.Type)
	}
}

// enqueue queues job and supersedes anything already queued or running
// under the same id.
func (c *Controller) enqueue(job JobMessage) {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}

	c.mu.Lock()
	c.seq++
	q := queuedJob{job: job, gen: c.seq}
	queued := false
	select {
	case c.jobs <- q:
		queued = true
		c.pending[job.ID] = &pendingJob{gen: q.gen}
		if job.ID == c.current && c.cancel != nil {
			log.Printf("Restarting running job %s", job.ID)
			c.cancel()
		}
	default:
	}
	c.mu.Unlock()

	if queued {
		c.streamer.SendResult(ResultMessage{ID: job.ID, Status: StatusQueued})
		return
	}
	log.Printf("Job %s rejected: queue full", job.ID)
	c.streamer.SendResult(ResultMessage{
		ID:      job.ID,
		Status:  StatusError,
		Stage:   stageQueue,
		Message: "too many pending jobs, try again later",
	})
}

func (c *Controller) cancelJob(id string) {
	if id == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if id == c.current && c.cancel != nil {
		log.Printf("Cancelling running job %s", id)
		c.cancel()
	}
	if p, ok := c.pending[id]; ok {
		log.Printf("Cancelling queued job %s", id)
		p.cancelled = true
	}
}

// Run processes queued jobs until ctx is done.
func (c *Controller) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case q := <-c.jobs:
			c.dispatch(ctx, q)
		}
	}
}

// dispatch runs a queue entry unless it was cancelled while waiting or a
// newer start for the same id replaced it.
func (c *Controller) dispatch(ctx context.Context, q queuedJob) {
	id := q.job.ID
	c.mu.Lock()
	p, ok := c.pending[id]
	if !ok || p.gen != q.gen {
		c.mu.Unlock()
		log.Printf("Job %s superseded by a newer start", id)
		return
	}
	delete(c.pending, id)
	c.mu.Unlock()

	if p.cancelled {
		log.Printf("Job %s cancelled before it started", id)
		c.streamer.SendResult(ResultMessage{
			ID:      id,
			Status:  StatusError,
			Stage:   string(ugoira.StageCancelled),
			Message: "cancelled",
		})
		return
	}
	c.runJob(ctx, q.job)
}

func (c *Controller) runJob(parent context.Context, job JobMessage) {
	ctx, cancel := context.WithCancel(parent)
	c.mu.Lock()
	c.current, c.cancel = job.ID, cancel
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.current, c.cancel = "", nil
		c.mu.Unlock()
		cancel()
	}()

	c.streamer.SendResult(c.process(ctx, job))
}

func (c *Controller) process(ctx context.Context, job JobMessage) ResultMessage {
	m := job.Manifest()
	start := time.Now()
	log.Printf("Job %s: %d frames from %s", job.ID, m.Len(), job.Source())

	var raw []byte
	if m.Len() > 0 {
		fetchCtx := ctx
		if c.config.Fetch.Timeout > 0 {
			var cancel context.CancelFunc
			fetchCtx, cancel = context.WithTimeout(ctx, c.config.Fetch.Timeout)
			defer cancel()
		}

		var err error
		raw, err = c.fetcher.Fetch(fetchCtx, job.Source())
		if err != nil {
			log.Printf("Job %s: fetch failed: %v", job.ID, err)
			if ctx.Err() != nil {
				return failure(job.ID, string(ugoira.StageCancelled), nil, "cancelled", err)
			}
			return failure(job.ID, stageFetch, nil, "failed fetching archive", err)
		}
	}

	art, err := c.driver.Run(ctx, raw, m, c.streamer.Progress(job.ID))
	if err != nil {
		log.Printf("Job %s: %v", job.ID, err)
		var se *ugoira.StageError
		if errors.As(err, &se) {
			var frame *int
			if se.Frame >= 0 {
				f := se.Frame
				frame = &f
			}
			return failure(job.ID, string(se.Stage), frame, se.Message(), err)
		}
		return failure(job.ID, "", nil, "failed", err)
	}

	url, err := c.saver.Save(job.ID, art)
	if err != nil {
		log.Printf("Job %s: save failed: %v", job.ID, err)
		return failure(job.ID, stageSave, nil, "failed saving animation", err)
	}

	log.Printf("Job %s: %s, %d frames, %d bytes in %v", job.ID, art.Filename, art.Frames, len(art.Data), time.Since(start))
	return ResultMessage{
		ID:       job.ID,
		Status:   StatusDone,
		Filename: art.Filename,
		URL:      url,
		Bytes:    len(art.Data),
		Frames:   art.Frames,
	}
}

func failure(id, stage string, frame *int, message string, err error) ResultMessage {
	return ResultMessage{
		ID:      id,
		Status:  StatusError,
		Stage:   stage,
		Frame:   frame,
		Message: message,
		Error:   err.Error(),
	}
}
