package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectPrecedence(t *testing.T) {
	all := Credentials{
		PluginAccessToken:  "pa",
		PluginRefreshToken: "pr",
		UserAccessToken:    "ua",
		UserRefreshToken:   "ur",
		UserLogin:          "login",
		UserPassword:       "pw",
		PluginTopic:        "topic",
	}

	cases := []struct {
		name  string
		creds func(c Credentials) Credentials
		want  Credential
	}{
		{
			name:  "plugin access token wins",
			creds: func(c Credentials) Credentials { return c },
			want:  PluginAccessToken{Token: "pa"},
		},
		{
			name: "plugin refresh token",
			creds: func(c Credentials) Credentials {
				c.PluginAccessToken = ""
				return c
			},
			want: PluginRefreshToken{RefreshToken: "pr"},
		},
		{
			name: "user access token",
			creds: func(c Credentials) Credentials {
				c.PluginAccessToken, c.PluginRefreshToken = "", ""
				return c
			},
			want: UserAccessToken{Token: "ua", Topic: "topic"},
		},
		{
			name: "user refresh token",
			creds: func(c Credentials) Credentials {
				c.PluginAccessToken, c.PluginRefreshToken, c.UserAccessToken = "", "", ""
				return c
			},
			want: UserRefreshToken{RefreshToken: "ur", Topic: "topic"},
		},
		{
			name: "user credentials",
			creds: func(c Credentials) Credentials {
				c.PluginAccessToken, c.PluginRefreshToken, c.UserAccessToken, c.UserRefreshToken = "", "", "", ""
				return c
			},
			want: UserPassword{Login: "login", Password: "pw", Topic: "topic"},
		},
		{
			name: "user paths need a topic",
			creds: func(c Credentials) Credentials {
				return Credentials{UserAccessToken: c.UserAccessToken, UserRefreshToken: c.UserRefreshToken, UserLogin: c.UserLogin, UserPassword: c.UserPassword}
			},
		},
		{
			name: "login without password",
			creds: func(c Credentials) Credentials {
				return Credentials{UserLogin: "login", PluginTopic: "topic"}
			},
		},
		{
			name:  "empty",
			creds: func(c Credentials) Credentials { return Credentials{} },
		},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			got, ok := Select(c.creds(all))
			if c.want == nil {
				assert.False(t, ok)
				assert.Nil(t, got)
				return
			}
			assert.True(t, ok)
			assert.Equal(t, c.want, got)
		})
	}
}
