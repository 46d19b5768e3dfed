package ports

// SecurityMetrics records authentication and token events.
type SecurityMetrics interface {
	TokenIssued()
	TokensRevoked(n int)
	TokenReuseDetected()
	LoginFailed()
	UserRegistered()
}

type NopSecurityMetrics struct{}

func (NopSecurityMetrics) TokenIssued()        {}
func (NopSecurityMetrics) TokensRevoked(int)   {}
func (NopSecurityMetrics) TokenReuseDetected() {}
func (NopSecurityMetrics) LoginFailed()        {}
func (NopSecurityMetrics) UserRegistered()     {}

// FeedMetrics records audit feed delivery outcomes per topic.
type FeedMetrics interface {
	FeedDelivered(topic string)
	FeedRetried(topic string)
	FeedParked(topic string)
}

type NopFeedMetrics struct{}

func (NopFeedMetrics) FeedDelivered(string) {}
func (NopFeedMetrics) FeedRetried(string)   {}
func (NopFeedMetrics) FeedParked(string)    {}
