package conversation

import "path"

// Collection names of the persisted layout.
const (
	SessionsRoot          = "adk-sessions"
	SessionsCollection    = "sessions"
	EventsCollection      = "user-events"
	AppStateCollection    = "app_state"
	UserStateCollection   = "user_state"
	UserStateUsers        = "users"
	PreferencesCollection = "user_roles"
)

// SessionsPath is the collection holding all sessions of userID.
func SessionsPath(userID string) string {
	return path.Join(SessionsRoot, userID, SessionsCollection)
}

// SessionPath is the session document.
func SessionPath(userID, sessionID string) string {
	return path.Join(SessionsPath(userID), sessionID)
}

// EventsPath is the event sub-collection of a session.
func EventsPath(userID, sessionID string) string {
	return path.Join(SessionPath(userID, sessionID), EventsCollection)
}

// AppStatePath is the app-scoped state document.
func AppStatePath(appName string) string {
	return path.Join(AppStateCollection, appName)
}

// UserStatePath is the user-scoped state document for (appName, userID).
func UserStatePath(appName, userID string) string {
	return path.Join(UserStateCollection, appName, UserStateUsers, userID)
}

// PreferencesPath is the preferences document of userID.
func PreferencesPath(userID string) string {
	return path.Join(PreferencesCollection, userID)
}
