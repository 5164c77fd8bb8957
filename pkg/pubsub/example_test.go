package pubsub

import "fmt"

func ExamplePubSub() {
	ps := NewPubSubChan[string]()
	sub := ps.Subscribe()

	ps.Publish("subtitle: hello")

	r := <-sub
	if r.Err != nil {
		fmt.Println("recv failed:", r.Err)
		return
	}
	fmt.Println(r.Ok)

	// Output:
	// subtitle: hello
}
