// Package tgtext provides Telegram text helpers:
//   - Line-respecting splitting of long messages (SplitLines)
//   - Safe HTML building for ParseMode="HTML" (auto escaping)
//   - Rune-aware truncation
//
// Design goals:
//   - Lossless splitting: chunks concatenate back to the input
//   - Safe by default for Telegram HTML parse mode
//   - No I/O, no Telegram API coupling
package tgtext
