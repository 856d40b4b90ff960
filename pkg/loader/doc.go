/*
Package loader reads machine definitions from YAML (or JSON) documents.

A document declares one or more machines. State and machine order is preserved,
so the first state of a machine is its initial state unless "initial" says
otherwise, and the first machine is the entry machine unless "machine" says
otherwise:

	machine: checkout
	machines:
	  payment:
	    states:
	      charging:
	        invoke: {task: charge}
	        on:
	          done: paid
	          error: {to: declined, reduce: {store_error: reason}}
	      paid: {final: true}
	      declined: {final: true}
	  checkout:
	    context: {items: 0}
	    states:
	      shopping:
	        on:
	          add: {to: shopping, reduce: inc_items}
	          pay:
	            - to: paying
	              guard: has_items
	      paying:
	        invoke: {machine: payment}
	        on:
	          done: complete
	      complete: {}

Callbacks are referenced by name and resolved through a registry.Registry.
Besides registered names the following inline forms are understood:

	guard:  {equals: {key: value}}   context entries equal the given values
	        {not: ref}               negates another guard reference
	reduce: {assign: {key: value}}   sets context entries
	        {store: key}             stores the event data under key
	        {store_error: key}       stores the event error message under key
	        {unset: key}             removes key

A state declaring nothing, or "final: true", is final.

"reduce" is one ordered list and accepts action names as well as reducers, so an
action can observe the context between two reducers. Names listed under "action"
run after the whole "reduce" list.
*/
package loader
