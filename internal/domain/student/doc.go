// Package student holds the per-student aggregate counters of the progression
// engine: XP and the level curve derived from it, currency balances, answer
// totals and the daily streak.
//
// # Invariants
//
//   - TotalXP, Coins and Gems never go negative.
//   - CurrentLevel always equals LevelFor(TotalXP).Level after a mutation.
//   - Counter mutations go through Repository.ApplyDelta, which increments in
//     the store rather than writing back a value read earlier.
//   - Streak state changes only on session start and in the lapsed-streak job.
package student
