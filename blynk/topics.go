package blynk

import "strings"

// TopicPrefix prefix of every device topic
const TopicPrefix = "blynk/v1/device/"

// Device to server topics
const (
	TopicDataStream        = TopicPrefix + "data/stream"
	TopicNotifications     = TopicPrefix + "notifications"
	TopicPropertyUpdate    = TopicPrefix + "property/update"
	TopicEvent             = TopicPrefix + "events"
	TopicInfoUpdate        = TopicPrefix + "info/update"
	TopicBridgeRequest     = TopicPrefix + "bridge/request"
	TopicLocationUpdate    = TopicPrefix + "location/update"
	TopicMetadataUpdate    = TopicPrefix + "metadata/update"
	TopicAutomationTrigger = TopicPrefix + "automation/trigger"
	TopicDeviceLog         = TopicPrefix + "log"
	TopicOTAUpdate         = TopicPrefix + "ota/update"
)

// Server to device topics
const (
	TopicControl            = TopicPrefix + "control"
	TopicInfoGet            = TopicPrefix + "info/get"
	TopicPropertyGet        = TopicPrefix + "property/get"
	TopicAutomationResponse = TopicPrefix + "automation/response"
	TopicOTARequest         = TopicPrefix + "ota/request"
)

// inboundTopics subscribed on every connect, in order
var inboundTopics = []string{
	TopicControl,
	TopicInfoGet,
	TopicPropertyGet,
	TopicAutomationResponse,
	TopicOTARequest,
}

// topicLabel short topic name used as metric label
func topicLabel(topic string) string {
	if strings.HasPrefix(topic, TopicPrefix) && len(topic) > len(TopicPrefix) {
		return strings.TrimPrefix(topic, TopicPrefix)
	}
	return "other"
}
