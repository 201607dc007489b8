package receipt

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/valpere/ReceiptScrapexter/internal/scraper"
)

const templateHTML = `<html><body>
<div id="conteudo">
  <div class="txtTopo">SUPERMERCADO EXEMPLO LTDA</div>
  <div class="text">CNPJ: 12.345.678/0001-90</div>
  <div id="totalNota">
    <div id="linhaTotal"><label>Qtd. total de itens:</label><span class="totalNumb">3</span></div>
    <div id="linhaTotal"><label>Valor total R$:</label><span class="totalNumb">160,00</span></div>
    <div id="linhaTotal"><label>Descontos R$:</label><span class="totalNumb">10,00</span></div>
    <div id="linhaTotal" class="linhaShade"><label>Valor a pagar R$:</label><span class="totalNumb txtMax">150,00</span></div>
  </div>
  <h4>Informações gerais da Nota</h4>
  <table class="table">
    <tr><th>Modelo</th><th>Série</th><th>Número</th><th>Data Emissão</th></tr>
    <tr><td>65</td><td>1</td><td>123456</td><td>04/05/2024 12:00:00</td></tr>
  </table>
</div>
</body></html>`

const driftedHTML = `<html><body>
<div class="resumo">
  <p>Total a pagar</p>
  <p>R$ 89,90</p>
  <ul><li><b>Emissão:</b> <i>12/03/2024 08:15:00</i></li></ul>
</div>
</body></html>`

const bareHTML = `<html><body>
<div>Pagamento</div>
<div>Autorizacao 20240101101010</div>
<div>Cupom 987654321</div>
<div>42,50</div>
</body></html>`

// fakeFetcher serves a canned page or error and counts calls
type fakeFetcher struct {
	body  string
	err   error
	block bool
	calls atomic.Int32
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*scraper.Page, error) {
	f.calls.Add(1)
	if f.block {
		// Ignores ctx on purpose: the extractor must still return on time
		time.Sleep(5 * time.Second)
		return nil, context.DeadlineExceeded
	}
	if f.err != nil {
		return nil, f.err
	}
	return &scraper.Page{
		URL:         url,
		StatusCode:  200,
		ContentType: "text/html; charset=utf-8",
		Body:        f.body,
	}, nil
}

func mustParse(html string) *scraper.HTMLParser {
	doc, err := scraper.NewHTMLParser(html)
	if err != nil {
		panic(err)
	}
	return doc
}
