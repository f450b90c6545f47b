package model

// Settings is the device-wide configuration shared by every actor.
// Webhook and WebhookURL always carry the same value; both names are kept
// because older clients and the discovery service use either one.
type Settings struct {
	Webhook           string   `json:"webhook"`
	WebhookURL        string   `json:"webhookUrl"`
	AuthWebhook       string   `json:"authWebhook"`
	CreateUserWebhook string   `json:"createUserWebhook"`
	UsersEndpoint     string   `json:"usersEndpoint"`
	Team              string   `json:"team"`
	ElecTypes         []string `json:"elecTypes"`
	WaterTypes        []string `json:"waterTypes"`
}
