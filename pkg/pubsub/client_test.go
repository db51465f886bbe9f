package pubsub

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/bidhouse-backend/pkg/config"
)

func TestTopicNamesSkipsBlankAndDuplicate(t *testing.T) {
	names := TopicNames(config.PubSubConfig{OrdersTopic: " orders ", ListingsTopic: "orders"})
	assert.Equal(t, []string{"orders"}, names)

	assert.Empty(t, TopicNames(config.PubSubConfig{}))
}

func TestTopicResourceName(t *testing.T) {
	assert.Equal(t, "projects/p1/topics/orders", topicResourceName("p1", "orders"))
	assert.Equal(t, "projects/other/topics/x", topicResourceName("p1", "projects/other/topics/x"))
	assert.Equal(t, "", topicResourceName("", "orders"))
	assert.Equal(t, "", topicResourceName("p1", "  "))
}
