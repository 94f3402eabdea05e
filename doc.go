/*
Package hmmer provides the reference dynamic-programming core of a profile
HMM sequence comparison engine: a Plan7-style state machine (match/insert/
delete plus flanking N/J/C/E/B/L/G states), dense and memory-checkpointed
DP matrices, Viterbi/Forward/Backward/posterior-Decoding recurrences in a
dual local/glocal alignment model, anchor-set-constrained (ASC) variants of
the same recurrences, sparse-mask-restricted DP, traceback (optimal and
stochastic), and generative emission.

HMM file I/O, multiple sequence alignment construction, command-line
drivers, vector/SIMD filter pipelines and output formatting are out of
scope; this package only describes the sparse-mask interface a prefilter
must emit and the RNG interface a caller must supply.
*/
package hmmer
