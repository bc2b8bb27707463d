// Package state keeps in-flight conversation sessions keyed by chat.
// A session lives in a Store only while a questionnaire is in progress;
// reading an unknown chat yields an idle session that is never persisted.
package state
