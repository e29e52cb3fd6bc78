// Package notifications delivers webhook messages for score changes, sync
// completion, and errors. The payload format targets DingTalk group robots
// but any endpoint accepting the same markdown JSON works.
package notifications
