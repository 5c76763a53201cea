package protocol

import (
	"encoding/json"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Wire format", func() {
	It("encodes requests as one CRLF-terminated JSON line", func() {
		req := &Request{ID: 1, Method: `set_power`, Params: []interface{}{`on`, `smooth`, 300}}
		buf, err := req.encode()
		Expect(err).NotTo(HaveOccurred())
		Expect(string(buf)).To(Equal(`{"id":1,"method":"set_power","params":["on","smooth",300]}` + "\r\n"))
	})

	It("decodes correlated replies", func() {
		msg := new(message)
		Expect(json.Unmarshal([]byte(`{"id":2,"result":["on","","100"]}`), msg)).To(Succeed())
		Expect(msg.ID).NotTo(BeNil())
		Expect(*msg.ID).To(Equal(int64(2)))
		Expect(msg.Result).To(Equal([]interface{}{`on`, ``, `100`}))
		Expect(msg.Error).To(BeNil())
	})

	It("decodes error replies", func() {
		msg := new(message)
		Expect(json.Unmarshal([]byte(`{"id":3,"error":{"code":-1,"message":"invalid command"}}`), msg)).To(Succeed())
		Expect(msg.Error).NotTo(BeNil())
		Expect(msg.Error.Code).To(Equal(-1))
		Expect(msg.Error.Message).To(Equal(`invalid command`))
	})

	It("decodes unsolicited notifications", func() {
		msg := new(message)
		Expect(json.Unmarshal([]byte(`{"method":"props","params":{"power":"on","bright":"10"}}`), msg)).To(Succeed())
		Expect(msg.ID).To(BeNil())
		Expect(msg.Method).To(Equal(`props`))
		Expect(msg.Params).To(HaveKeyWithValue(`power`, `on`))
	})
})
