/*
Package layers implements safety layers around a base decision procedure.

A Zero agent decides straight from its model. A Layered agent wraps exactly one core
Decider and judges its core's decision by comparing it with the core's decision on a
mutated model: if the two agree the action is Confirmed, otherwise the same action is
returned tagged UpdateRequested.

# Safety Layers and Natural Numbers

A stack with N layers has the Peano shape of N: Zero is zero and Layered is the
successor, so 3 = Layered(Layered(Layered(Zero))).

# Cost

Nesting decide calls literally doubles the work per layer. Instead, every Decide walks
down to the single Zero core and probes one mutation chain m0, m1 = mutate(m0), ...:

	1 = 0 0'
	2 = 0 1' = 0 0' 0''
	3 = 0 2' = 0 0' 1' = 0 0' 0'' 0'''

Layer k compares the decision on m(k-1) with the decision on m(k). A depth-N stack calls
the base decision logic exactly N+1 times and keeps at most two models alive.

Layers probe in depth, not in breadth: the mutations form one sequential chain. Sampling
independent mutations is left to callers, who may run Decide concurrently since stacks
are immutable.
*/
package layers
