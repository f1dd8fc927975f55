package ipc

// Channel names a request/response exchange between the UI and the service.
type Channel string

const (
	ChannelRegisterUser         Channel = "register-user"
	ChannelSetUser              Channel = "set-user"
	ChannelLoginUser            Channel = "login-user"
	ChannelGetSettingsForMode   Channel = "get-settings-for-mode"
	ChannelDownloadParameterLog Channel = "download-parameter-log"
	ChannelDownloadLoginHistory Channel = "download-login-history"
)

// Channels lists every channel the boundary answers.
var Channels = []Channel{
	ChannelRegisterUser,
	ChannelSetUser,
	ChannelLoginUser,
	ChannelGetSettingsForMode,
	ChannelDownloadParameterLog,
	ChannelDownloadLoginHistory,
}

func (c Channel) Known() bool {
	for _, k := range Channels {
		if c == k {
			return true
		}
	}
	return false
}
