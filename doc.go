/*
Package safetylayers builds agents wrapped in safety layers.

An agent designed for perfect information decides straight from its internal model.
Wrapping it in safety layers lets it act when goals or models are uncertain: each layer
mutates the model (a goal edit, a belief edit, a state edit) and compares decisions.
When the decision survives every probe it is Confirmed; otherwise the same action is
returned tagged UpdateRequested, signalling that a model update (new sensory data, or an
assertion that the goal is correct) should be requested before trusting it.

# Concept

The caller supplies two capabilities: base decision logic (Model -> Action) and a
mutation generator (Model -> Model). The Agent owns an immutable stack of N layers and
evaluates it with N+1 calls to the base logic, one mutation chain probed in depth.

# Usage

	agent, err := safetylayers.New(
		func(m World) Move { return plan(m) },
		func(m World) World { return m.DoubtGoal() },
		safetylayers.WithLayers(2),
		safetylayers.WithLogger(logger),
	)
	if err != nil {
		log.Fatal(err)
	}

	decision := agent.Decide(ctx, world)
	if !decision.Confirmed() {
		// Ask for a model update before acting.
	}
	perform(decision.Action)

Agents are not assumed to be deterministic, so safe behaviour is not guaranteed: a
layered agent is only safer than its core on average.
*/
package safetylayers
