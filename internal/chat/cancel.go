package chat

import (
	"context"

	"github.com/voxhall/voxhall/internal/logging"
	"github.com/voxhall/voxhall/internal/transport"
	"github.com/voxhall/voxhall/internal/view"
)

// Canceller implements user-initiated stop for one submission.
type Canceller struct {
	sub       *submission
	transport transport.Streamer
	persister *Persister
	state     *view.State
	external  func() string
	log       *logging.Logger
}

// Stop halts consumption, flushes buffered text so nothing is lost, marks
// the message stopped, requests remote task cancellation (best-effort) and
// persists the partial result. Repeated calls are no-ops.
func (c *Canceller) Stop() {
	id, buf := c.sub.turn()
	if id == "" {
		c.log.Debug().Msg("stop requested before any assistant output")
		return
	}
	if msg, ok := c.state.Get(id); !ok || !msg.IsStreaming {
		c.log.Debug().Str("messageId", id).Msg("stop requested but message is not streaming")
		return
	}
	if !c.sub.markStopped() {
		return
	}

	// Close, not Flush: a fragment racing past the consumer's liveness
	// check must not land in the buffer after this point.
	buf.Close()
	c.state.MarkManuallyStopped(id)
	c.log.Info().Str("messageId", id).Msg("streaming stopped by user")

	// The local state transition above is authoritative; the remote stop
	// only saves the service some work.
	if taskID := c.sub.stream.TaskID(); taskID != "" {
		go func() {
			if err := c.transport.StopTask(context.Background(), taskID); err != nil {
				c.log.Warn().Err(err).Str("taskId", taskID).Msg("remote stop-task failed")
			}
		}()
	} else {
		c.log.Warn().Str("messageId", id).Msg("no task id captured; skipping remote stop")
	}

	go c.persister.Save(context.Background(), id, c.external)
}
