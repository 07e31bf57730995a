package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[LoginMessage]       = (*LoginCommand)(nil)
	_ gocmd.Commander[ConnectPageMessage] = (*ConnectPageCommand)(nil)
)
