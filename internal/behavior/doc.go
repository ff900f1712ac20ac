/*
Package behavior builds behavior trees from XML or YAML definitions and runs
them on go-behaviortree.

# Architecture

go-behaviortree is the tick engine. Every node of a definition becomes one
bt.Node, wrapped by a TreeNode that carries the instance metadata:

  - Factory maps node IDs to builders and tree IDs to parsed definitions
  - Tree owns the instantiated nodes, the root Blackboard and the tick loop
  - Blackboard is the shared key-value store ports resolve in

A Factory is populated once and may create any number of trees. Trees are
owned by the caller and are not retained by the factory.

# Definitions

The XML layout follows the BehaviorTree.CPP v4 format:

	<root BTCPP_format="4" main_tree_to_execute="MainTree">
	  <BehaviorTree ID="MainTree">
	    <Sequence name="root_sequence">
	      <CheckBattery name="battery_ok"/>
	      <SubTree ID="Grasp" target="{goal}"/>
	    </Sequence>
	  </BehaviorTree>
	</root>

A node is either named by its element (<CheckBattery/>) or by an explicit
category element with an ID attribute (<Action ID="CheckBattery"/>). The YAML
layout carries the same information; see parseYAML.

# Ports

An attribute of the form {key} refers to a blackboard entry, {=} to the entry
named like the port, and anything else is a literal. Keys prefixed with @
resolve in the root blackboard. A SubTree gets its own scope: its attributes
remap keys into the parent, and _autoremap="true" exposes every parent key
not starting with an underscore.

# Scripting

Script, ScriptCondition, Precondition and the _skipIf, _failureIf,
_successIf, _while, _onSuccess, _onFailure and _post attributes evaluate
expr-lang expressions against the visible blackboard. Statements are
separated by ';' and may assign with :=, =, +=, -=, *= or /=.

# Ticking

Sequence and Fallback remember completed children across Running ticks;
their Reactive variants re-tick from the first child. Tree.Run ticks until
the root completes, sleeping between Running ticks unless a node calls Wake.
*/
package behavior
