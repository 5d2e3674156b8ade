package bot

import (
	"fmt"
	"html"
	"strings"

	"github.com/camden-git/trustytail/services"
	"github.com/camden-git/trustytail/telegram"
)

// Callback tokens carried by inline buttons.
const (
	CallbackAlive            = "/alive"
	CallbackEnable           = "/enable"
	CallbackDisable          = "/disable"
	CallbackEmergencyInfo    = "/emergency_info"
	CallbackAskEmergencyInfo = "/ask_for_emergency_info"
	CallbackAskInvite        = "/ask_for_invite"
	CallbackOwnerMenu        = "/owner_menu"
	CallbackContactMenu      = "/contact_menu"
	CallbackMainMenu         = "/main_menu"
)

const (
	ReminderText    = "Please confirm that you are alive by pressing the button below or sending /alive."
	PauseNoticeText = "🚨 You have not checked in for too long. Sending your emergency text to all secondary owners and pausing monitoring. Use /enable to resume."

	textStart = "<b>Welcome to TrustyTail!</b>\n\n" +
		"I check in on you regularly. If you stop answering, I send your emergency instructions " +
		"to the people you trust so your pet is never left alone.\n\n" +
		"Invite a secondary owner with /invite and set your instructions with /set_emergency_text."
	textHelp = "<b>These commands are supported:</b>\n" +
		"/menu - show the main menu\n" +
		"/alive - mark that you are ok\n" +
		"/enable - enable monitoring\n" +
		"/disable - disable monitoring\n" +
		"/status - show monitoring status\n" +
		"/emergency_info - show your emergency text\n" +
		"/set_emergency_text - set your emergency text\n" +
		"/invite - get your invite code\n" +
		"/accept_invite - become a secondary owner\n" +
		"/contacts - list your secondary owners\n" +
		"/owners - list owners you back up\n" +
		"/cancel - cancel the current action"

	textMarkedAlive         = "Marked as alive! See you next time."
	textMonitoringEnabled   = "Monitoring enabled."
	textMonitoringDisabled  = "Monitoring disabled."
	textAskEmergencyText    = "Send me the text your secondary owners should receive in an emergency: feeding instructions, where the keys are, who your vet is."
	textEmergencyTextSaved  = "Emergency text saved."
	textEmergencyTextEmpty  = "The emergency text can not be empty. Send it again or /cancel."
	textAskInvite           = "Please send the invite code you received from the pet owner."
	textInviteAccepted      = "Accepted! You are now a secondary owner for %s."
	textInviteAlreadyLinked = "You are already a secondary owner for %s."
	textUnknownInvite       = "Unknown invite code."
	textCancelled           = "Cancelled."
	textNotUnderstood       = "Command not understood."
	textFailure             = "Something went wrong, please try again later."
)

// AlertText is sent to every secondary owner when handle escalates.
func AlertText(handle, emergencyText string) string {
	return fmt.Sprintf("🚨 %s has not checked in for several days. Please make sure they and their pet are ok. Here are their emergency instructions:\n\n%s", handle, emergencyText)
}

// ReminderKeyboard carries the one-tap liveness confirmation.
func ReminderKeyboard() *telegram.Keyboard {
	return telegram.NewKeyboard(telegram.Button{Text: "I'm OK", Data: CallbackAlive})
}

func mainMenuKeyboard(monitoringEnabled bool) *telegram.Keyboard {
	toggle := telegram.Button{Text: "⏸ Pause monitoring", Data: CallbackDisable}
	if !monitoringEnabled {
		toggle = telegram.Button{Text: "▶️ Resume monitoring", Data: CallbackEnable}
	}
	return telegram.NewKeyboard(
		telegram.Button{Text: "I'm OK", Data: CallbackAlive},
		toggle,
		telegram.Button{Text: "My secondary owners", Data: CallbackOwnerMenu},
		telegram.Button{Text: "Owners I back up", Data: CallbackContactMenu},
		telegram.Button{Text: "Emergency text", Data: CallbackEmergencyInfo},
	)
}

func ownerMenuKeyboard() *telegram.Keyboard {
	return telegram.NewKeyboard(
		telegram.Button{Text: "Set emergency text", Data: CallbackAskEmergencyInfo},
		telegram.Button{Text: "« Back", Data: CallbackMainMenu},
	)
}

func contactMenuKeyboard() *telegram.Keyboard {
	return telegram.NewKeyboard(
		telegram.Button{Text: "Enter invite code", Data: CallbackAskInvite},
		telegram.Button{Text: "« Back", Data: CallbackMainMenu},
	)
}

func emergencyInfoKeyboard() *telegram.Keyboard {
	return telegram.NewKeyboard(
		telegram.Button{Text: "Change", Data: CallbackAskEmergencyInfo},
		telegram.Button{Text: "« Back", Data: CallbackMainMenu},
	)
}

func renderMainMenu(monitoringEnabled bool) string {
	state := "🟢 Monitoring is <b>on</b>."
	if !monitoringEnabled {
		state = "⚪️ Monitoring is <b>off</b>."
	}
	return "<b>Main menu</b>\n\n" + state
}

func renderContacts(title string, contacts []services.Contact, empty string) string {
	var b strings.Builder
	b.WriteString("<b>" + title + "</b>\n\n")
	if len(contacts) == 0 {
		b.WriteString(empty)
		return b.String()
	}
	for _, c := range contacts {
		b.WriteString("• " + html.EscapeString(c.Handle) + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderOwnerMenu(contacts []services.Contact, inviteCode string) string {
	text := renderContacts("Your secondary owners", contacts, "Nobody yet.")
	return text + "\n\nShare this invite code with people you trust:\n<code>" + html.EscapeString(inviteCode) + "</code>"
}

func renderContactMenu(owners []services.Contact) string {
	return renderContacts("Owners you back up", owners, "You are not a secondary owner for anyone yet.")
}

func renderInvite(inviteCode string) string {
	return "Your invite code:\n<code>" + html.EscapeString(inviteCode) + "</code>\n\n" +
		"The person you trust should send /accept_invite and then this code."
}

func renderEmergencyInfo(text string, found bool) string {
	if !found {
		return "<b>Emergency text</b>\n\n<i>" + html.EscapeString(text) + "</i>\n\nSet it with /set_emergency_text."
	}
	return "<b>Emergency text</b>\n\n" + html.EscapeString(text)
}

func renderStatus(st *services.OwnerStatus) string {
	var b strings.Builder
	if st.MonitoringEnabled {
		b.WriteString("Monitoring: <b>on</b>\n")
	} else {
		b.WriteString("Monitoring: <b>off</b>\n")
	}
	if st.LastConfirmedAt != nil {
		b.WriteString("Last check-in: " + st.LastConfirmedAt.Format("2006-01-02 15:04 UTC") + "\n")
	} else {
		b.WriteString("Last check-in: never\n")
	}
	if st.HasEmergencyText {
		b.WriteString("Emergency text: set\n")
	} else {
		b.WriteString("Emergency text: not set\n")
	}
	fmt.Fprintf(&b, "Secondary owners: %d", len(st.SecondaryContacts))
	return b.String()
}
