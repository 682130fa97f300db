// Package conversation defines the data model shared by the session store,
// the memory search and the agent runtime bridge: sessions, events, content
// parts and the errors the store reports.
package conversation
