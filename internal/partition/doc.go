// Package partition implements the two-level connectivity protocol (C3 of
// the coupling connectivity runtime): the collective, two-phase exchange
// that discovers, for every local rank, which remote ranks own mesh data
// overlapping its subdomain.
//
// The protocol runs across four role-groups per coupled mesh: local master
// (LM), local slaves (LS...), remote master (RM), and (implicitly, through
// RM) the remote slaves. Phase 1 (communicateBoundingBox) is a master-only
// inter-participant exchange on the m2n channel. Phase 2
// (computeBoundingBox) is a two-level broadcast-then-gather on the
// intra-participant channel, ending with LM sending the resulting
// FeedbackMap back to RM.
package partition
