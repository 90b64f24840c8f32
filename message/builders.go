package message

type TokenPayload struct {
	Token string `json:"token"`
}

type TopicPayload struct {
	TopicList         []string `json:"topicList"`
	SubscriptionGroup string   `json:"subscriptionGroup,omitempty"`
}

// AuthenticatePluginResult is the payload of a successful authenticate-plugin response.
type AuthenticatePluginResult struct {
	Topic string `json:"topic"`
}

type FailurePayload struct {
	Message string `json:"message"`
}

func AuthenticatePlugin(token string) Message {
	return mustNew(ActionAuthenticatePlugin, TokenPayload{Token: token})
}

// SubscribeTopic builds a subscribe-topic request. An empty group is omitted from the payload.
func SubscribeTopic(topics []string, group string) Message {
	return mustNew(ActionSubscribeTopic, TopicPayload{TopicList: topics, SubscriptionGroup: group})
}

func UnsubscribeTopic(topics []string) Message {
	return mustNew(ActionUnsubscribeTopic, TopicPayload{TopicList: topics})
}

// mustNew is only used with payload types that always encode.
func mustNew(action string, payload any) Message {
	m, err := New(action, payload)
	if err != nil {
		panic(err)
	}
	return m
}
