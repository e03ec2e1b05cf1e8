// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat is the Bubble Tea front end of onys.

The Model renders the active session held by a chat.Controller and feeds
keyboard input back into it. Sends are split so the optimistic update
happens inside Update and only the network exchange runs in a command.

# Layout

	header      brand, session id, provider/model
	viewport    messages; replies rendered with glamour
	strip       staged attachments with their @fileN tags
	textarea    input (Enter sends, Alt+Enter inserts a newline,
	            Alt+1..9 appends the tag of that attachment)
	notice      the last notification
	status      state, input token estimate, session totals

# Slash Commands

	/new               start a fresh session
	/sessions          list stored sessions
	/load <n|id>       open a stored session
	/delete <n|id>     delete a stored session
	/attach <path...>  stage files
	/rm <n>            unstage attachment n
	/reuse <m> [n]     re-stage attachment n of message m
	/tag <n>           start the input with @filen
	/model [p [m]]     list providers or select provider p, model m
	/providers         reload the provider catalog
	/save              save the session now
	/quit              save and exit

# Usage

	bridge := chat.NewBridge()
	ctrl := core.NewController(client, core.WithNotifier(bridge), core.WithTokenCallback(bridge.Tokens))
	m := chat.New(ctrl, bridge, chat.Options{Context: ctx})
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
*/
package chat
