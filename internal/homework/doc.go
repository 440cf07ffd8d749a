// Package homework validates homework-status API responses and turns the
// latest submission into a chat message.
//
// Only the first element of "homeworks" is ever inspected; the rest of the
// list is ignored on purpose.
package homework
