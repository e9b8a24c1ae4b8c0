package streaks

import (
	"strings"
	"unicode/utf8"
)

const topicPrefix = "#"

// ResolveTopic returns the topic a progress message belongs to: the leading
// #tag of the message body if present, otherwise the channel name. The
// result always carries the '#' prefix and is lower-cased. A bare "#" is
// returned as-is so validation can reject it.
func ResolveTopic(body string, channelName string) string {
	fields := strings.Fields(body)
	if len(fields) > 0 && strings.HasPrefix(fields[0], topicPrefix) {
		return strings.ToLower(fields[0])
	}
	return ChannelTopic(channelName)
}

// ChannelTopic is the default topic for posts made without a #tag.
func ChannelTopic(channelName string) string {
	return topicPrefix + strings.ToLower(strings.TrimPrefix(channelName, topicPrefix))
}

// TopicName strips the '#' prefix.
func TopicName(topic string) string {
	return strings.TrimPrefix(topic, topicPrefix)
}

func validTopic(topic string) bool {
	return utf8.RuneCountInString(TopicName(topic)) > 0
}

// StripCommand removes the leading command token (e.g. "!streak") from text.
func StripCommand(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexFunc(text, isSpace); i >= 0 {
		return strings.TrimSpace(text[i:])
	}
	return ""
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
