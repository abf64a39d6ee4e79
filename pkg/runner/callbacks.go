package runner

import (
	"github.com/sirupsen/logrus"

	"github.com/canlink-io/isotp"
)

// LoggingCallbacks logs every completion notification at the appropriate
// level (Debug for success, Warn for failure; failure entries include the
// link's protocol diagnostic) and optionally forwards to an
// application-supplied inner Callbacks.
type LoggingCallbacks struct {
	log   *logrus.Entry
	inner isotp.Callbacks
}

// NewLoggingCallbacks wraps inner (which may be nil) with structured
// logging on log.
func NewLoggingCallbacks(log *logrus.Entry, inner isotp.Callbacks) *LoggingCallbacks {
	return &LoggingCallbacks{log: log, inner: inner}
}

func (c *LoggingCallbacks) SendDone(link *isotp.Link) {
	c.log.WithField("link", link.ID).Debug("send complete")
	if c.inner != nil {
		c.inner.SendDone(link)
	}
}

func (c *LoggingCallbacks) SendFail(link *isotp.Link, result isotp.Result) {
	c.log.WithFields(logrus.Fields{
		"link":            link.ID,
		"result":          result,
		"protocol_result": link.SendProtocolResult(),
	}).Warn("send failed")
	if c.inner != nil {
		c.inner.SendFail(link, result)
	}
}

func (c *LoggingCallbacks) ReceiveDone(link *isotp.Link) {
	c.log.WithField("link", link.ID).Debug("receive complete")
	if c.inner != nil {
		c.inner.ReceiveDone(link)
	}
}

func (c *LoggingCallbacks) ReceiveFail(link *isotp.Link, result isotp.Result) {
	c.log.WithFields(logrus.Fields{
		"link":            link.ID,
		"result":          result,
		"protocol_result": link.ReceiveProtocolResult(),
	}).Warn("receive failed")
	if c.inner != nil {
		c.inner.ReceiveFail(link, result)
	}
}
